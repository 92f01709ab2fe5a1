package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-sync-reconciler/internal/adapters/threesum"
	"telegram-sync-reconciler/internal/rpc"
)

// messagesPage строит страницу из n сообщений, начиная с номера from.
func messagesPage(from, n int, next string) rpc.Response {
	msgs := make([]string, 0, n)
	for i := from; i < from+n; i++ {
		msgs = append(msgs, fmt.Sprintf(`{"id":%d,"messageText":"m%d","sender":{"name":"u"}}`, i, i))
	}
	cursor := "null"
	if next != "" {
		cursor = fmt.Sprintf("%q", next)
	}
	return rpc.Response{Data: json.RawMessage(fmt.Sprintf(`{"messages":[%s],"nextCursor":%s}`, strings.Join(msgs, ","), cursor))}
}

func TestCollectMessages_StopsAtLimit(t *testing.T) {
	rc, api, syncSvc := replayStack(rpc.Recording{
		threesum.OpSyncTelegram: {raw(`{}`)},
		threesum.OpMessages: {
			messagesPage(0, 4, "c1"),
			messagesPage(4, 4, "c2"),
			messagesPage(8, 4, "c3"),
			messagesPage(12, 4, ""),
		},
	})
	uc := NewCollectMessages(api, syncSvc, WithCollectLogger(quietLogger()))

	messages, err := uc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, DefaultMaxMessages)
	assert.Equal(t, "0", messages[0].ID)
	assert.Equal(t, "11", messages[11].ID)
	assert.Equal(t, []string{
		threesum.OpSyncTelegram,
		threesum.OpMessages,
		threesum.OpMessages,
		threesum.OpMessages,
	}, rc.Calls())
}

func TestCollectMessages_StopsAtAbsentCursor(t *testing.T) {
	rc, api, syncSvc := replayStack(rpc.Recording{
		threesum.OpSyncTelegram: {raw(`{}`)},
		threesum.OpMessages: {
			messagesPage(0, 4, "c1"),
			messagesPage(4, 1, ""),
		},
	})
	uc := NewCollectMessages(api, syncSvc, WithCollectLogger(quietLogger()))

	messages, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, messages, 5)
	assert.Len(t, rc.Calls(), 3)
}

func TestCollectMessages_CustomPaging(t *testing.T) {
	_, api, syncSvc := replayStack(rpc.Recording{
		threesum.OpSyncTelegram: {raw(`{}`)},
		threesum.OpMessages: {
			messagesPage(0, 2, "c1"),
			messagesPage(2, 2, "c2"),
			messagesPage(4, 2, ""),
		},
	})
	uc := NewCollectMessages(api, syncSvc, WithCollectLogger(quietLogger()), WithPaging(2, 0))

	messages, err := uc.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, messages, 6)
}

func TestCollectMessages_PageErrorDiscardsEverything(t *testing.T) {
	_, api, syncSvc := replayStack(rpc.Recording{
		threesum.OpSyncTelegram: {raw(`{}`)},
		threesum.OpMessages: {
			messagesPage(0, 4, "c1"),
			{Error: json.RawMessage(`{"message":"cursor expired"}`)},
		},
	})
	uc := NewCollectMessages(api, syncSvc, WithCollectLogger(quietLogger()))

	messages, err := uc.Run(context.Background())
	assert.Nil(t, messages)
	assert.Equal(t, PhaseMessages, PhaseOf(err))
	assert.True(t, rpc.IsApplication(err))
}

func TestCollectMessages_SyncFailure(t *testing.T) {
	rc, api, syncSvc := replayStack(rpc.Recording{})
	uc := NewCollectMessages(api, syncSvc, WithCollectLogger(quietLogger()))

	_, err := uc.Run(context.Background())
	assert.Equal(t, PhaseSync, PhaseOf(err))
	assert.Equal(t, []string{threesum.OpSyncTelegram}, rc.Calls())
}
