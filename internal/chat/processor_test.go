package chat

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/chat2test/internal/domain"
	"github.com/ashureev/chat2test/internal/store"
	"github.com/ashureev/chat2test/internal/testcase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fixture struct {
	repo      store.Repository
	cases     *testcase.Store
	model     *fakeModel
	proc      *Processor
	uploads   *DiskUploads
	owner     *domain.User
	project   *domain.Project
	chat      *domain.Chat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := store.NewSQLite(filepath.Join(dir, "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	uploads, err := NewDiskUploads(filepath.Join(dir, "uploads"), 1<<20)
	require.NoError(t, err)

	seed, err := testcase.LoadSeed()
	require.NoError(t, err)
	cases := testcase.NewStore(seed, testcase.FixedExecutor{})

	owner := &domain.User{Email: "owner@example.com", HashedPassword: "hash"}
	require.NoError(t, repo.CreateUser(ctx, owner))
	project := &domain.Project{Name: "Shop", Status: domain.ProjectActive, UserID: owner.ID}
	require.NoError(t, repo.CreateProject(ctx, project))
	chat := &domain.Chat{UserID: owner.ID, ProjectID: project.ID, Title: "Checkout"}
	require.NoError(t, repo.CreateChat(ctx, chat))

	model := &fakeModel{reply: "Here are some ideas."}
	return &fixture{
		repo:      repo,
		cases:     cases,
		model:     model,
		proc:      NewProcessor(repo, cases, model, uploads),
		uploads:   uploads,
		owner:     owner,
		project:   project,
		chat:      chat,
	}
}

func (f *fixture) turn(content string, files ...string) Turn {
	t := Turn{ChatID: f.chat.ID, UserID: f.owner.ID, Content: content, Mode: domain.InvokeNew}
	for _, name := range files {
		t.Attachments = append(t.Attachments, Attachment{Name: name, Body: strings.NewReader("data:" + name)})
	}
	return t
}

func TestProcessAIResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.proc.Process(ctx, f.turn("Generate login tests"))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAIResponse, reply.Type)
	assert.Equal(t, "Here are some ideas.", reply.Response)
	assert.Nil(t, reply.TestCases)
	assert.Equal(t, []string{"Generate login tests"}, f.model.prompts)

	msgs, err := f.repo.ListMessages(ctx, f.chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.SenderUser, msgs[0].Sender)
	assert.Equal(t, domain.MediaText, msgs[0].FileType)
	assert.Equal(t, domain.SenderBot, msgs[1].Sender)
	assert.Equal(t, "Here are some ideas.", msgs[1].Text())
}

func TestProcessModelErrorBecomesReplyText(t *testing.T) {
	f := newFixture(t)
	f.model.err = errors.New("quota exceeded")

	reply, err := f.proc.Process(context.Background(), f.turn("hello"))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAIResponse, reply.Type)
	assert.Contains(t, reply.Response, "quota exceeded")
}

func TestProcessShowTestAttachesStore(t *testing.T) {
	f := newFixture(t)

	reply, err := f.proc.Process(context.Background(), f.turn("Please SHOW TEST cases"))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryTestCaseApproval, reply.Type)
	assert.Equal(t, domain.SentinelApproval, reply.Response)
	assert.Len(t, reply.TestCases, f.cases.Len())
	assert.Empty(t, f.model.prompts)
}

func TestProcessAutomationWithFilesInterrupts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.proc.Process(ctx, f.turn("run Automation on these", "flow.PNG", "spec.pdf"))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryUserInterrupt, reply.Type)
	assert.Contains(t, reply.Response, "flow.PNG, spec.pdf")

	msgs, err := f.repo.ListMessages(ctx, f.chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	user := msgs[0]
	assert.Equal(t, domain.MediaImage, user.FileType)
	assert.Equal(t, "flow.PNG,spec.pdf", user.FileName)
	assert.True(t, strings.HasPrefix(user.FileURL, "/uploads/"+strconv.FormatInt(f.chat.ID, 10)+"/"), user.FileURL)
	assert.True(t, strings.HasSuffix(user.FileURL, "-flow.PNG"), user.FileURL)
	assert.Equal(t, "data:flow.PNG", f.readLocator(t, user.FileURL))

	entries, err := os.ReadDir(filepath.Join(f.uploads.Root, strconv.FormatInt(f.chat.ID, 10)))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func (f *fixture) readLocator(t *testing.T, locator string) string {
	t.Helper()
	chatID, stored, err := ParseLocator(locator)
	require.NoError(t, err)
	file, _, err := f.uploads.Open(chatID, stored)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	return string(data)
}

func TestSameNameUploadsKeepTheirOwnContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.turn("first draft")
	first.Attachments = []Attachment{{Name: "spec.pdf", Body: strings.NewReader("VERSION-ONE")}}
	_, err := f.proc.Process(ctx, first)
	require.NoError(t, err)

	second := f.turn("second draft")
	second.Attachments = []Attachment{
		{Name: "spec.pdf", Body: strings.NewReader("VERSION-TWO")},
		{Name: "spec.pdf", Body: strings.NewReader("VERSION-THREE")},
	}
	_, err = f.proc.Process(ctx, second)
	require.NoError(t, err)

	msgs, err := f.repo.ListMessages(ctx, f.chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "spec.pdf", msgs[0].FileName)
	assert.Equal(t, "spec.pdf,spec.pdf", msgs[2].FileName)
	assert.NotEqual(t, msgs[0].FileURL, msgs[2].FileURL)
	assert.Equal(t, "VERSION-ONE", f.readLocator(t, msgs[0].FileURL))
	assert.Equal(t, "VERSION-TWO", f.readLocator(t, msgs[2].FileURL))

	entries, err := os.ReadDir(filepath.Join(f.uploads.Root, strconv.FormatInt(f.chat.ID, 10)))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestFailedAttachmentRemovesEarlierUploads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn := f.turn("automation please")
	turn.Attachments = []Attachment{
		{Name: "flow.png", Body: strings.NewReader("png")},
		{Name: "..", Body: strings.NewReader("bad")},
	}
	_, err := f.proc.Process(ctx, turn)
	assert.ErrorIs(t, err, domain.ErrValidation)

	entries, err := os.ReadDir(filepath.Join(f.uploads.Root, strconv.FormatInt(f.chat.ID, 10)))
	require.NoError(t, err)
	assert.Empty(t, entries)

	msgs, err := f.repo.ListMessages(ctx, f.chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestProcessFilesWithoutTextAcknowledges(t *testing.T) {
	f := newFixture(t)

	reply, err := f.proc.Process(context.Background(), f.turn("", "voice.m4a"))
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAIResponse, reply.Type)
	assert.Equal(t, "Received 1 file(s): voice.m4a", reply.Response)
	assert.Empty(t, f.model.prompts)
}

func TestProcessRejectsForeignChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stranger := &domain.User{Email: "stranger@example.com", HashedPassword: "hash"}
	require.NoError(t, f.repo.CreateUser(ctx, stranger))

	turn := f.turn("hello")
	turn.UserID = stranger.ID
	_, err := f.proc.Process(ctx, turn)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	msgs, err := f.repo.ListMessages(ctx, f.chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestProcessValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.proc.Process(ctx, f.turn("   "))
	assert.ErrorIs(t, err, domain.ErrValidation)

	turn := f.turn("hello")
	turn.Mode = "replay"
	_, err = f.proc.Process(ctx, turn)
	assert.ErrorIs(t, err, domain.ErrValidation)

	turn = f.turn("hello")
	turn.Mode = domain.InvokeResume
	_, err = f.proc.Process(ctx, turn)
	assert.NoError(t, err)
}

func TestHistoryDerivesApprovalRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.proc.Process(ctx, f.turn("show test cases"))
	require.NoError(t, err)

	// A model reply that happens to match the sentinel keeps its own kind.
	f.model.reply = domain.SentinelApproval
	_, err = f.proc.Process(ctx, f.turn("say the magic words"))
	require.NoError(t, err)

	// Rows written without a stored kind fall back to content matching.
	legacy := domain.SentinelApproval
	require.NoError(t, f.repo.AddMessage(ctx, &domain.Message{ChatID: f.chat.ID, Sender: domain.SenderBot, Content: &legacy}))

	entries, err := f.proc.History(ctx, f.chat.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	approval := func(e Entry) bool {
		return e.InvokeType != nil && *e.InvokeType == domain.CategoryTestCaseApproval && e.TestCases != nil
	}
	assert.False(t, approval(entries[0]))
	assert.True(t, approval(entries[1]))
	assert.Len(t, entries[1].TestCases, f.cases.Len())
	assert.False(t, approval(entries[2]))
	assert.Nil(t, entries[3].InvokeType)
	assert.Nil(t, entries[3].TestCases)
	assert.True(t, approval(entries[4]))

	_, err = f.proc.History(ctx, f.chat.ID, f.owner.ID+100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExplore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.proc.Explore(ctx, f.owner.ID, ExploreRequest{
		URL: "https://shop.example.com", MaxPages: 3, ProjectID: f.project.ID, ChatID: f.chat.ID, Suggestion: "focus on cart",
	})
	require.NoError(t, err)
	assert.Equal(t, "Exploration completed", res.Message)
	assert.Len(t, res.TestCases, f.cases.Len())

	entries, err := f.proc.History(ctx, f.chat.ID, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Explore URL: https://shop.example.com (max_pages=3) Suggestion: focus on cart", entries[0].Text())
	require.NotNil(t, entries[1].InvokeType)
	assert.Equal(t, domain.CategoryTestCaseApproval, *entries[1].InvokeType)
}

func TestExploreRejectsMismatchedChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &domain.Project{Name: "Other", Status: domain.ProjectActive, UserID: f.owner.ID}
	require.NoError(t, f.repo.CreateProject(ctx, other))

	_, err := f.proc.Explore(ctx, f.owner.ID, ExploreRequest{
		URL: "https://shop.example.com", MaxPages: 1, ProjectID: other.ID, ChatID: f.chat.ID,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.proc.Explore(ctx, f.owner.ID, ExploreRequest{
		URL: "shop", MaxPages: 1, ProjectID: f.project.ID, ChatID: f.chat.ID,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.proc.Explore(ctx, f.owner.ID, ExploreRequest{
		URL: "https://shop.example.com", ProjectID: f.project.ID, ChatID: f.chat.ID,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\temp\shot.png`, "shot.png"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "SanitizeName(%q)", tt.in)
	}
}

func TestDiskUploadsRejectsOversize(t *testing.T) {
	u, err := NewDiskUploads(t.TempDir(), 4)
	require.NoError(t, err)

	_, err = u.Save(1, "big.txt", strings.NewReader("too large"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	entries, err := os.ReadDir(filepath.Join(u.Root, "1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskUploadsOpen(t *testing.T) {
	u, err := NewDiskUploads(t.TempDir(), 0)
	require.NoError(t, err)

	locator, err := u.Save(7, "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	chatID, stored, err := ParseLocator(locator)
	require.NoError(t, err)
	assert.Equal(t, int64(7), chatID)

	f, info, err := u.Open(chatID, stored)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	require.NoError(t, f.Close())

	require.NoError(t, os.Mkdir(filepath.Join(u.Root, "7", "nested"), 0755))
	for _, name := range []string{"", "nested", "..", "../7/" + stored, "missing.txt"} {
		_, _, err := u.Open(7, name)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Open(%q)", name)
	}
	_, _, err = u.Open(8, stored)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, u.Remove(locator))
	require.NoError(t, u.Remove(locator))
	_, _, err = u.Open(chatID, stored)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseLocatorRejectsMalformed(t *testing.T) {
	for _, locator := range []string{"", "/files/1/a.txt", "/uploads/1", "/uploads/x/a.txt", "/uploads/0/a.txt", "/uploads/1/..", "/uploads/1/a%2Fb"} {
		_, _, err := ParseLocator(locator)
		assert.ErrorIs(t, err, domain.ErrValidation, "ParseLocator(%q)", locator)
	}
}
