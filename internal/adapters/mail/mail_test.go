package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"

	"github.com/dkeye/callrecap/internal/app/recap"
	"github.com/dkeye/callrecap/internal/domain"
)

var callDate = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestIsBusiness(t *testing.T) {
	assert.True(t, IsBusiness("You agreed on the next Project milestone."))
	assert.True(t, IsBusiness("Bob listed two action items."))
	assert.False(t, IsBusiness("You and Bob caught up about the weekend."))
}

func TestRenderCasual(t *testing.T) {
	r, err := RenderSummary("Alice", "You and Bob chatted about hiking.", callDate)
	require.NoError(t, err)
	assert.Equal(t, "Your call recap - Mar 1, 2026", r.Subject)
	assert.Contains(t, r.HTML, "Hi Alice,")
	assert.Contains(t, r.HTML, "#22c55e")
	assert.Contains(t, r.HTML, "Call Recap")
	assert.Contains(t, r.Text, "You and Bob chatted about hiking.")
}

func TestRenderBusiness(t *testing.T) {
	r, err := RenderSummary("Alice", "You made a decision about the client.", callDate)
	require.NoError(t, err)
	assert.Equal(t, "Call Summary - Mar 1, 2026", r.Subject)
	assert.Contains(t, r.HTML, "Dear Alice,")
	assert.Contains(t, r.HTML, "#2563eb")
}

func TestRenderEscapesSummary(t *testing.T) {
	r, err := RenderSummary("<b>Eve</b>", "<script>alert(1)</script>", callDate)
	require.NoError(t, err)
	assert.NotContains(t, r.HTML, "<script>")
	assert.NotContains(t, r.HTML, "<b>Eve</b>")
	assert.Contains(t, r.HTML, "&lt;script&gt;")
}

type fakeSender struct {
	msgs []*gomail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, msgs ...*gomail.Msg) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func TestSendSummary(t *testing.T) {
	fs := &fakeSender{}
	m := &SMTPMailer{from: "recap@example.com", fromName: "Recap", client: fs}

	ok := m.SendSummary(context.Background(), domain.Contributor{Name: "Alice", Contact: "alice@x.com"},
		"You talked.", recap.CallDetails{RoomID: "42", CallDate: callDate})
	require.True(t, ok)
	require.Len(t, fs.msgs, 1)

	rcpts, err := fs.msgs[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@x.com"}, rcpts)
	assert.Equal(t, []string{"Your call recap - Mar 1, 2026"}, fs.msgs[0].GetGenHeader(gomail.HeaderSubject))
}

func TestSendSummaryReportsFailure(t *testing.T) {
	m := &SMTPMailer{from: "recap@example.com", fromName: "Recap", client: &fakeSender{err: errors.New("connection refused")}}
	ok := m.SendSummary(context.Background(), domain.Contributor{Name: "Alice", Contact: "alice@x.com"},
		"You talked.", recap.CallDetails{RoomID: "42", CallDate: callDate})
	assert.False(t, ok)
}

func TestSendSummaryBadAddress(t *testing.T) {
	fs := &fakeSender{}
	m := &SMTPMailer{from: "recap@example.com", fromName: "Recap", client: fs}
	ok := m.SendSummary(context.Background(), domain.Contributor{Name: "Alice", Contact: "not an address"},
		"You talked.", recap.CallDetails{RoomID: "42", CallDate: callDate})
	assert.False(t, ok)
	assert.Empty(t, fs.msgs)
}
