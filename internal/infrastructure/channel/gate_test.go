package channel

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"breathing_club_bot/internal/domain"
	"breathing_club_bot/internal/monitoring"
)

type fakeRequester struct {
	calls  []tgbotapi.Chattable
	failOn string
}

func (f *fakeRequester) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.calls = append(f.calls, c)
	switch c.(type) {
	case tgbotapi.BanChatMemberConfig:
		if f.failOn == "ban" {
			return nil, errors.New("Bad Request: not enough rights")
		}
	case tgbotapi.UnbanChatMemberConfig:
		if f.failOn == "unban" {
			return nil, errors.New("Bad Request: user not found")
		}
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestGateOpen(t *testing.T) {
	api := &fakeRequester{}
	gate := NewGate(api, -100123, monitoring.NewNopLogger())

	if err := gate.Open(context.Background(), 42); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(api.calls) != 1 {
		t.Fatalf("ожидался один запрос, получено %d", len(api.calls))
	}
	unban, ok := api.calls[0].(tgbotapi.UnbanChatMemberConfig)
	if !ok {
		t.Fatalf("ожидался unban, получено %T", api.calls[0])
	}
	if !unban.OnlyIfBanned || unban.ChatID != -100123 || unban.UserID != 42 {
		t.Errorf("неверные параметры unban: %+v", unban)
	}
}

func TestGateClose(t *testing.T) {
	api := &fakeRequester{}
	gate := NewGate(api, -100123, monitoring.NewNopLogger())

	if err := gate.Close(context.Background(), 42); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(api.calls) != 2 {
		t.Fatalf("ожидалось два запроса, получено %d", len(api.calls))
	}
	if _, ok := api.calls[0].(tgbotapi.BanChatMemberConfig); !ok {
		t.Errorf("первым должен идти ban, получено %T", api.calls[0])
	}
	if _, ok := api.calls[1].(tgbotapi.UnbanChatMemberConfig); !ok {
		t.Errorf("вторым должен идти unban, получено %T", api.calls[1])
	}
}

func TestGateErrors(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
		op     func(g *Gate) error
	}{
		{"ошибка бана", "ban", func(g *Gate) error { return g.Close(context.Background(), 1) }},
		{"ошибка разбана при кике", "unban", func(g *Gate) error { return g.Close(context.Background(), 1) }},
		{"ошибка открытия", "unban", func(g *Gate) error { return g.Open(context.Background(), 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(&fakeRequester{failOn: tt.failOn}, -1, monitoring.NewNopLogger())
			err := tt.op(gate)
			if !errors.Is(err, domain.ErrChannelGate) {
				t.Errorf("ожидалась ErrChannelGate, получено %v", err)
			}
		})
	}
}
