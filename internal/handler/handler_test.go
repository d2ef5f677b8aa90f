package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/receiptbot/internal/domain"
	"github.com/set-night/receiptbot/internal/middleware"
)

type call struct {
	op      string
	userID  string
	arg     string
	caption string
}

type fakeIntake struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeIntake) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeIntake) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

func (f *fakeIntake) AddPhoto(_ context.Context, userID string, image []byte, caption string) error {
	return f.record(call{op: "photo", userID: userID, arg: string(image), caption: caption})
}

func (f *fakeIntake) AddGroupedPhoto(_ context.Context, userID, correlationID string, image []byte, caption string) error {
	return f.record(call{op: "grouped:" + correlationID, userID: userID, arg: string(image), caption: caption})
}

func (f *fakeIntake) AddText(_ context.Context, userID, text string) error {
	return f.record(call{op: "text", userID: userID, arg: text})
}

func (f *fakeIntake) Finalize(_ context.Context, userID string) error {
	return f.record(call{op: "finalize", userID: userID})
}

func (f *fakeIntake) Retry(_ context.Context, userID string) error {
	return f.record(call{op: "retry", userID: userID})
}

func (f *fakeIntake) Refine(_ context.Context, userID string) error {
	return f.record(call{op: "refine", userID: userID})
}

func (f *fakeIntake) Confirm(_ context.Context, userID string) error {
	return f.record(call{op: "confirm", userID: userID})
}

func (f *fakeIntake) Cancel(_ context.Context, userID string) {
	_ = f.record(call{op: "cancel", userID: userID})
}

func (f *fakeIntake) Start(_ context.Context, userID string) {
	_ = f.record(call{op: "start", userID: userID})
}

func (f *fakeIntake) Status(_ context.Context, userID string) {
	_ = f.record(call{op: "status", userID: userID})
}

func (f *fakeIntake) Snapshot(string) (domain.Session, bool) {
	return domain.Session{}, false
}

// newTestBot serves the Bot API methods the handlers use plus file downloads.
func newTestBot(t *testing.T) (*bot.Bot, *[]string) {
	t.Helper()
	var (
		mu      sync.Mutex
		methods []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/file/") {
			fmt.Fprint(w, "jpeg-bytes")
			return
		}
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		mu.Lock()
		methods = append(methods, method)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getFile":
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"f","file_unique_id":"u","file_path":"photos/f.jpg"}}`)
		case "answerCallbackQuery", "sendChatAction":
			fmt.Fprint(w, `{"ok":true,"result":true}`)
		default:
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":7,"type":"private"}}}`)
		}
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test",
		bot.WithServerURL(srv.URL),
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(5*time.Second, srv.Client()),
	)
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	return b, &methods
}

func senderCtx() context.Context {
	return middleware.WithSender(context.Background(), middleware.Sender{UserID: 7, ChatID: 7})
}

func message(m models.Message) *models.Update {
	m.From = &models.User{ID: 7}
	m.Chat = models.Chat{ID: 7, Type: models.ChatTypePrivate}
	return &models.Update{Message: &m}
}

func TestActionTableCoversAllActions(t *testing.T) {
	h := New(Deps{Intake: &fakeIntake{}})
	for _, a := range domain.Actions {
		if _, ok := h.actions[a]; !ok {
			t.Errorf("no handler for action %q", a)
		}
	}
	if len(h.actions) != len(domain.Actions) {
		t.Errorf("table has %d entries, want %d", len(h.actions), len(domain.Actions))
	}
}

func TestHandleMessageRouting(t *testing.T) {
	tests := []struct {
		name string
		msg  models.Message
		want []string
	}{
		{"text", models.Message{Text: "coffee $5"}, []string{"text"}},
		{"keyword", models.Message{Text: "Next"}, []string{"finalize"}},
		{"russian keyword", models.Message{Text: "далее"}, []string{"finalize"}},
		{"keyword with punctuation", models.Message{Text: "done!"}, []string{"finalize"}},
		{"keyword inside sentence", models.Message{Text: "next time cheaper"}, []string{"text"}},
		{"unknown command", models.Message{Text: "/foo"}, nil},
		{"photo", models.Message{Photo: []models.PhotoSize{{FileID: "s", Width: 10, Height: 10}, {FileID: "l", Width: 100, Height: 100}}, Caption: "lunch"}, []string{"photo"}},
		{"album photo", models.Message{Photo: []models.PhotoSize{{FileID: "l", Width: 100, Height: 100}}, MediaGroupID: "g1"}, []string{"grouped:g1"}},
		{"image document", models.Message{Document: &models.Document{FileID: "d", MimeType: "image/png"}}, []string{"photo"}},
		{"pdf document", models.Message{Document: &models.Document{FileID: "d", MimeType: "application/pdf"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBot(t)
			intake := &fakeIntake{}
			h := New(Deps{Bot: b, Intake: intake})

			h.HandleMessage(senderCtx(), b, message(tt.msg))

			if got := intake.ops(); strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ops = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandlePhotoPassesImageAndCaption(t *testing.T) {
	b, _ := newTestBot(t)
	intake := &fakeIntake{}
	h := New(Deps{Bot: b, Intake: intake})

	h.HandleMessage(senderCtx(), b, message(models.Message{
		Photo:   []models.PhotoSize{{FileID: "l", Width: 100, Height: 100}},
		Caption: "team lunch",
	}))

	if len(intake.calls) != 1 {
		t.Fatalf("calls = %+v", intake.calls)
	}
	c := intake.calls[0]
	if c.userID != "7" || c.arg != "jpeg-bytes" || c.caption != "team lunch" {
		t.Errorf("call = %+v", c)
	}
}

func TestHandleMessageWithoutSender(t *testing.T) {
	b, _ := newTestBot(t)
	intake := &fakeIntake{}
	h := New(Deps{Bot: b, Intake: intake})

	h.HandleMessage(context.Background(), b, message(models.Message{Text: "coffee"}))

	if len(intake.ops()) != 0 {
		t.Error("message without sender reached the intake")
	}
}

func TestHandleAction(t *testing.T) {
	tests := []struct {
		data string
		want []string
	}{
		{domain.ActionConfirm.CallbackData(), []string{"confirm"}},
		{domain.ActionRefine.CallbackData(), []string{"refine"}},
		{domain.ActionRetry.CallbackData(), []string{"retry"}},
		{domain.ActionFinalize.CallbackData(), []string{"finalize"}},
		{domain.ActionCancel.CallbackData(), []string{"cancel"}},
		{"act_bogus", nil},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			b, methods := newTestBot(t)
			intake := &fakeIntake{}
			h := New(Deps{Bot: b, Intake: intake})

			h.handleAction(senderCtx(), b, &models.Update{CallbackQuery: &models.CallbackQuery{
				ID:   "cb1",
				From: models.User{ID: 7},
				Data: tt.data,
			}})

			if got := intake.ops(); strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ops = %v, want %v", got, tt.want)
			}
			if len(*methods) == 0 || (*methods)[0] != "answerCallbackQuery" {
				t.Errorf("callback not answered first: %v", *methods)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	b, _ := newTestBot(t)
	intake := &fakeIntake{}
	h := New(Deps{Bot: b, Intake: intake})
	ctx := senderCtx()
	upd := message(models.Message{Text: "/x"})

	h.handleStart(ctx, b, upd)
	h.handleNext(ctx, b, upd)
	h.handleStatus(ctx, b, upd)
	h.handleCancel(ctx, b, upd)

	want := "start,finalize,status,cancel"
	if got := strings.Join(intake.ops(), ","); got != want {
		t.Errorf("ops = %s, want %s", got, want)
	}
}
