package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/stretchr/testify/require"

	"github.com/skyvolunteer/transferbot/internal/dedup"
	"github.com/skyvolunteer/transferbot/internal/records"
	"github.com/skyvolunteer/transferbot/internal/session"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendMessage(_ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingSender) EditMessage(_ int64, _ int, text string) error {
	return r.SendMessage(0, text)
}

func (r *recordingSender) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent, "expected at least one outbound message")
	return r.sent[len(r.sent)-1]
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type failingRepo struct{}

func (failingRepo) FindByKind(context.Context, records.Kind) ([]records.Record, error) {
	return nil, errors.New("backing store unavailable")
}

func (failingRepo) Create(context.Context, records.Record) (records.Record, error) {
	return records.Record{}, errors.New("backing store unavailable")
}

func (failingRepo) BindChat(context.Context, records.Kind, string, int64) error {
	return errors.New("backing store unavailable")
}

// degradedRepo serves the first lookup and fails every call after it,
// mimicking a backend that drops out mid-request.
type degradedRepo struct {
	calls int
}

func (r *degradedRepo) FindByKind(context.Context, records.Kind) ([]records.Record, error) {
	r.calls++
	if r.calls > 1 {
		return nil, errors.New("backing store unavailable")
	}
	return nil, nil
}

func (r *degradedRepo) Create(context.Context, records.Record) (records.Record, error) {
	return records.Record{}, errors.New("backing store unavailable")
}

func (r *degradedRepo) BindChat(context.Context, records.Kind, string, int64) error {
	return errors.New("backing store unavailable")
}

type testRig struct {
	engine   *Engine
	repo     *records.Memory
	sender   *recordingSender
	sessions *session.Store
	msgID    int
}

func newTestRig() *testRig {
	repo := records.NewMemory()
	sender := &recordingSender{}
	sessions := session.NewStore(nil)
	eng := New(
		sessions,
		records.NewResolver(repo),
		sender,
		dedup.New(1000, 10, nil, "dedup_primary"),
		dedup.New(1000, 10, nil, "dedup_media"),
	)
	return &testRig{engine: eng, repo: repo, sender: sender, sessions: sessions}
}

func (r *testRig) send(chatID int64, text string) {
	r.msgID++
	r.engine.HandleEvent(context.Background(), ClassifyText(chatID, r.msgID, text))
}

func TestPassengerRegistrationEndToEnd(t *testing.T) {
	rig := newTestRig()

	rig.send(42, "/register_passenger")
	require.Contains(t, rig.sender.last(t), "full name")

	rig.send(42, "Mary Johnson")
	confirmation := rig.sender.last(t)
	require.Contains(t, confirmation, "Mary Johnson")
	require.Contains(t, confirmation, "/my_roles")

	passengers, err := rig.repo.FindByKind(context.Background(), records.KindPassenger)
	require.NoError(t, err)
	require.Len(t, passengers, 1)
	require.Equal(t, "Mary Johnson", passengers[0].DisplayName)
	require.Equal(t, "Mary Johnson", passengers[0].LegalName)
	require.NotNil(t, passengers[0].ChatID)
	require.Equal(t, int64(42), *passengers[0].ChatID)

	_, ok := rig.sessions.Get(42)
	require.False(t, ok, "session must be removed after completion")
}

func TestFullNameRejectsSingleToken(t *testing.T) {
	rig := newTestRig()

	rig.send(42, "/register_passenger")
	rig.send(42, "John")
	require.Contains(t, rig.sender.last(t), "first and a last name")

	// Session survives the failed validation and accepts good input.
	rig.send(42, "John Smith")
	require.Contains(t, rig.sender.last(t), "John Smith")

	passengers, _ := rig.repo.FindByKind(context.Background(), records.KindPassenger)
	require.Len(t, passengers, 1)
}

func TestVolunteerRegistrationCollectsCityAndPhone(t *testing.T) {
	rig := newTestRig()

	rig.send(7, "/register_volunteer")
	rig.send(7, "John Smith")
	require.Contains(t, rig.sender.last(t), "city")

	rig.send(7, "Boston")
	require.Contains(t, rig.sender.last(t), "phone")

	rig.send(7, "not a phone")
	require.Contains(t, rig.sender.last(t), "Examples")

	rig.send(7, "+1 555 000-1122")
	require.Contains(t, rig.sender.last(t), "John Smith")

	volunteers, _ := rig.repo.FindByKind(context.Background(), records.KindVolunteer)
	require.Len(t, volunteers, 1)
	require.Equal(t, "Boston", volunteers[0].City)
	require.Equal(t, "+1 555 000-1122", volunteers[0].Phone, "phone is stored verbatim")
}

func TestLegacyVolunteerCollectsLegalName(t *testing.T) {
	rig := newTestRig()

	rig.send(7, "/register_volunteer_full")
	rig.send(7, "Johnny Walker")
	require.Contains(t, rig.sender.last(t), "legal name")

	rig.send(7, "John A Walker")
	rig.send(7, "Denver")
	rig.send(7, "+15550001122")

	volunteers, _ := rig.repo.FindByKind(context.Background(), records.KindVolunteer)
	require.Len(t, volunteers, 1)
	require.Equal(t, "Johnny Walker", volunteers[0].DisplayName)
	require.Equal(t, "John A Walker", volunteers[0].LegalName)
}

func TestDashboardUserUnknownUsername(t *testing.T) {
	rig := newTestRig()

	rig.send(42, "/register_user")
	require.Contains(t, rig.sender.last(t), "username")

	rig.send(42, "nonexistent_user")
	require.Contains(t, rig.sender.last(t), "not found")

	_, ok := rig.sessions.Get(42)
	require.False(t, ok, "session must be cleared")

	dashboard, _ := rig.repo.FindByKind(context.Background(), records.KindDashboardUser)
	require.Empty(t, dashboard, "link-only flow never creates records")
}

func TestDashboardUserLinksExisting(t *testing.T) {
	rig := newTestRig()
	rig.repo.Seed(records.Record{
		Kind: records.KindDashboardUser, DisplayName: "Ops One",
		Username: "ops_one", AllowedAirports: []string{"JFK", "BOS"},
	})

	rig.send(42, "/register_user")
	rig.send(42, "@ops_one")
	require.Contains(t, rig.sender.last(t), "ops_one")
	require.Contains(t, rig.sender.last(t), "JFK")

	dashboard, _ := rig.repo.FindByKind(context.Background(), records.KindDashboardUser)
	require.Len(t, dashboard, 1)
	require.Equal(t, int64(42), *dashboard[0].ChatID)
}

func TestNewCommandOverwritesStaleSession(t *testing.T) {
	rig := newTestRig()

	rig.send(42, "/register_volunteer")
	rig.send(42, "John Smith")
	rig.send(42, "Boston")

	// Abandon the volunteer dialog mid-way and start over as a passenger.
	rig.send(42, "/register_passenger")

	ses, ok := rig.sessions.Get(42)
	require.True(t, ok)
	require.Equal(t, session.DialogPassenger, ses.Dialog)
	_, has := ses.Fields.Get("city")
	require.False(t, has, "fields from the discarded dialog must not survive")
}

func TestAlreadyRegisteredShortCircuits(t *testing.T) {
	rig := newTestRig()
	rig.repo.Seed(records.Record{
		Kind: records.KindPassenger, DisplayName: "John Smith",
		ChatID: pointer.To(int64(42)),
	})

	rig.send(42, "/register_passenger")
	require.Contains(t, rig.sender.last(t), "already registered")

	_, ok := rig.sessions.Get(42)
	require.False(t, ok, "no session is created for an already-bound chat")
}

func TestConflictTerminatesSession(t *testing.T) {
	rig := newTestRig()
	rig.repo.Seed(records.Record{
		Kind: records.KindPassenger, DisplayName: "John Smith",
		ChatID: pointer.To(int64(1)),
	})

	rig.send(42, "/register_passenger")
	rig.send(42, "John Smith")
	require.Contains(t, rig.sender.last(t), "another chat")

	_, ok := rig.sessions.Get(42)
	require.False(t, ok, "conflict must not leave a retry loop behind")
}

func TestDuplicateEventIsDroppedSilently(t *testing.T) {
	rig := newTestRig()

	rig.send(42, "/register_passenger")
	sentBefore := rig.sender.count()

	// Same platform message redelivered.
	rig.engine.HandleEvent(context.Background(), ClassifyText(42, rig.msgID, "/register_passenger"))
	require.Equal(t, sentBefore, rig.sender.count(), "duplicate must produce no reply")
}

func TestRepositoryFailureFailsClosed(t *testing.T) {
	sender := &recordingSender{}
	sessions := session.NewStore(nil)
	eng := New(
		sessions,
		records.NewResolver(failingRepo{}),
		sender,
		dedup.New(1000, 10, nil, "dedup_primary"),
		dedup.New(1000, 10, nil, "dedup_media"),
	)

	// Seed a session directly so the failure hits mid-dialog.
	ses := session.New(42, session.DialogPassenger, session.StepFullName)
	sessions.Put(ses)

	eng.HandleEvent(context.Background(), ClassifyText(42, 1, "Mary Johnson"))
	require.Contains(t, sender.last(t), "start over")

	_, ok := sessions.Get(42)
	require.False(t, ok, "session must be deleted so the dialog restarts cleanly")
}

func TestDialogStartsWhenRoleSummaryFails(t *testing.T) {
	sender := &recordingSender{}
	sessions := session.NewStore(nil)
	eng := New(
		sessions,
		records.NewResolver(&degradedRepo{}),
		sender,
		dedup.New(1000, 10, nil, "dedup_primary"),
		dedup.New(1000, 10, nil, "dedup_media"),
	)

	// The duplicate-role check succeeds; only the cross-role summary lookup
	// fails. The summary is cosmetic, so the dialog must still open.
	eng.HandleEvent(context.Background(), ClassifyText(42, 1, "/register_passenger"))

	require.Contains(t, sender.last(t), "full name")
	_, ok := sessions.Get(42)
	require.True(t, ok, "dialog must start even when the role summary lookup fails")
}

func TestCancelDeletesSession(t *testing.T) {
	rig := newTestRig()

	rig.send(42, "/cancel")
	require.Contains(t, rig.sender.last(t), "Nothing to cancel")

	rig.send(42, "/register_volunteer")
	rig.send(42, "/cancel")
	require.Contains(t, rig.sender.last(t), "cancelled")

	_, ok := rig.sessions.Get(42)
	require.False(t, ok)
}

func TestFreeTextWithoutSessionGetsHint(t *testing.T) {
	rig := newTestRig()

	rig.send(42, "hello there")
	require.Contains(t, rig.sender.last(t), "/help")
}

func TestMyRolesListsBoundRecords(t *testing.T) {
	rig := newTestRig()
	rig.repo.Seed(
		records.Record{Kind: records.KindPassenger, DisplayName: "John Smith", ChatID: pointer.To(int64(42))},
		records.Record{Kind: records.KindVolunteer, DisplayName: "John Smith", ChatID: pointer.To(int64(42))},
	)

	rig.send(42, "/my_roles")
	out := rig.sender.last(t)
	require.Contains(t, out, "passenger")
	require.Contains(t, out, "volunteer driver")
}

func TestMediaWithoutHandlerGetsBrushOff(t *testing.T) {
	rig := newTestRig()

	ev := Event{ChatID: 42, MessageID: 1, Kind: EventPhoto, FileID: "f1"}
	rig.engine.HandleEvent(context.Background(), ev)
	require.Contains(t, rig.sender.last(t), "attachments")
}

func TestMediaAndTextUseSeparateDedupSpaces(t *testing.T) {
	rig := newTestRig()

	// Same chat id + message id in both pipelines; each is novel in its own.
	rig.engine.HandleEvent(context.Background(), ClassifyText(42, 1, "/help"))
	before := rig.sender.count()
	rig.engine.HandleEvent(context.Background(), Event{ChatID: 42, MessageID: 1, Kind: EventPhoto})
	require.Equal(t, before+1, rig.sender.count())
}
