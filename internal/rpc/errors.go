package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass различает категории сбоев вызова.
type ErrorClass int

const (
	// ClassTransport — вызов не дошел или ответ нельзя интерпретировать.
	ClassTransport ErrorClass = iota + 1
	// ClassApplication — удаленный сервис вернул структурированную ошибку.
	ClassApplication
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Error — единый тип ошибки RPC-шлюза.
type Error struct {
	Op     string
	Class  ErrorClass
	Status int // HTTP-статус, 0 если ответа не было
	// Payload — сырое содержимое поля error (или тела ответа) для диагностики.
	Payload json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error in %s", e.Class, e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if msg := e.Message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message извлекает человекочитаемое сообщение из tRPC-конверта ошибки, если оно есть.
func (e *Error) Message() string {
	if len(e.Payload) == 0 {
		return ""
	}
	var p struct {
		Message string `json:"message"`
		JSON    *struct {
			Message string `json:"message"`
		} `json:"json"`
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	if p.Message != "" {
		return p.Message
	}
	if p.JSON != nil {
		return p.JSON.Message
	}
	return ""
}

// Code возвращает tRPC-код ошибки (например, NOT_FOUND), если он передан.
func (e *Error) Code() string {
	if len(e.Payload) == 0 {
		return ""
	}
	var p struct {
		Data struct {
			Code string `json:"code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	return p.Data.Code
}

// ClassOf возвращает класс ошибки RPC в цепочке err, или 0, если ее там нет.
func ClassOf(err error) ErrorClass {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Class
	}
	return 0
}

// IsTransport сообщает, является ли err транспортным сбоем.
func IsTransport(err error) bool {
	return ClassOf(err) == ClassTransport
}

// IsApplication сообщает, является ли err ошибкой уровня приложения.
func IsApplication(err error) bool {
	return ClassOf(err) == ClassApplication
}
