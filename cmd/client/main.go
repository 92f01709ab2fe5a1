package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type runStatusResponse struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	ErrorPhase   string `json:"error_phase,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// apiClient обращается к HTTP API сервера сверки.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) startRun(ctx context.Context, folderLimit int) (string, error) {
	body := []byte("{}")
	if folderLimit > 0 {
		body = []byte(fmt.Sprintf(`{"folder_limit":%d}`, folderLimit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/runs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("не удалось отправить запрос: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp)
	}

	var created map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("не удалось декодировать ответ: %w", err)
	}
	if created["run_id"] == "" {
		return "", errors.New("идентификатор прогона не найден в ответе")
	}
	return created["run_id"], nil
}

func (c *apiClient) status(ctx context.Context, runID string) (runStatusResponse, error) {
	var status runStatusResponse
	data, err := c.get(ctx, "/api/v1/runs/"+runID)
	if err != nil {
		return status, err
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf("не удалось декодировать ответ статуса: %w", err)
	}
	return status, nil
}

func (c *apiClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s не выполнен: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("сервер вернул статус %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

// waitRun опрашивает статус прогона, пока он не завершится.
func (c *apiClient) waitRun(ctx context.Context, runID string, interval time.Duration) (runStatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.status(ctx, runID)
		if err != nil {
			return status, err
		}

		switch status.Status {
		case "completed", "failed":
			return status, nil
		case "pending", "processing":
			fmt.Fprintf(os.Stderr, "Статус прогона: %s\n", status.Status)
		default:
			return status, fmt.Errorf("неизвестный статус прогона: %s", status.Status)
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func main() {
	var (
		serverAddr string
		limit      int
		latest     bool
		interval   time.Duration
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.IntVar(&limit, "limit", 0, "Number of folders to reconcile (0 - server default)")
	flag.BoolVar(&latest, "latest", false, "Print the latest cached reports without starting a run")
	flag.DurationVar(&interval, "interval", 2*time.Second, "Status polling interval")
	flag.Parse()

	ctx := context.Background()
	client := newAPIClient(serverAddr)

	if latest {
		data, err := client.get(ctx, "/api/v1/reports/latest")
		if err != nil {
			log.Fatalf("Не удалось получить последние отчеты: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	runID, err := client.startRun(ctx, limit)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Fprintf(os.Stderr, "Прогон создан с идентификатором: %s\n", runID)

	status, err := client.waitRun(ctx, runID, interval)
	if err != nil {
		log.Fatalf("Не удалось опросить статус прогона: %v", err)
	}

	if status.Status == "failed" {
		fmt.Fprintf(os.Stderr, "Прогон не выполнен на этапе %s: %s\n", status.ErrorPhase, status.ErrorMessage)
		os.Exit(1)
	}

	data, err := client.get(ctx, "/api/v1/runs/"+runID+"/reports")
	if err != nil {
		log.Fatalf("Не удалось получить отчеты: %v", err)
	}
	fmt.Println(string(data))
}
