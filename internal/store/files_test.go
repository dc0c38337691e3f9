package store

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"klient-plikow/internal/apiclient"
	"klient-plikow/internal/auth"
	"klient-plikow/internal/models"
	"klient-plikow/internal/testserver"
)

type storeEnv struct {
	backend *testserver.Server
	api     *apiclient.Client
	tokens  *auth.TokenCache
	user    models.User
}

func newStoreEnv(t *testing.T, superuser bool) *storeEnv {
	t.Helper()

	backend := testserver.New()
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	user := backend.AddUser("tester", "Hasło123!", "tester@example.com", "Test Testowy", superuser)

	tokens, err := auth.NewTokenCache(&auth.MemoryTokenStore{})
	require.NoError(t, err)
	require.NoError(t, tokens.Set(backend.TokenFor(user.ID)))

	api, err := apiclient.New(srv.URL, tokens, zap.NewNop())
	require.NoError(t, err)

	return &storeEnv{backend: backend, api: api, tokens: tokens, user: user}
}

func TestFilesListReplacesItems(t *testing.T) {
	env := newStoreEnv(t, false)
	env.backend.AddFile(env.user.ID, "a.txt", "pierwszy", []byte("aa"))
	env.backend.AddFile(env.user.ID, "b.txt", "drugi", []byte("bb"))
	files := NewFiles(env.api, zap.NewNop())

	items, err := files.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a.txt", items[0].OriginalName)
	require.False(t, files.Loading())
	require.Empty(t, files.LastError())
}

func TestFilesListIdempotent(t *testing.T) {
	env := newStoreEnv(t, false)
	env.backend.AddFile(env.user.ID, "a.txt", "", []byte("aa"))
	files := NewFiles(env.api, zap.NewNop())

	first, err := files.List(context.Background(), 0)
	require.NoError(t, err)
	second, err := files.List(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, first, files.Items())
}

func TestFilesUploadEndToEnd(t *testing.T) {
	env := newStoreEnv(t, false)
	files := NewFiles(env.api, zap.NewNop())

	var sawMutating bool
	var lastSent, total int64
	uploaded, err := files.Upload(context.Background(), "report.pdf",
		strings.NewReader("kwartalne dane"), "Q1 numbers",
		func(sent, tot int64) {
			sawMutating = sawMutating || files.Mutating()
			lastSent, total = sent, tot
		})
	require.NoError(t, err)

	require.True(t, sawMutating, "mutating flag is up while the upload is in flight")
	require.False(t, files.Mutating())
	require.Equal(t, lastSent, total, "progress reaches the full body size")

	require.Equal(t, "report.pdf", uploaded.OriginalName)
	require.Equal(t, "Q1 numbers", uploaded.Comment)
	require.NotZero(t, uploaded.ID, "id is server-assigned")
	require.NotEmpty(t, uploaded.SharedLink, "shared link is server-assigned")

	items := files.Items()
	require.Len(t, items, 1)
	require.Equal(t, *uploaded, items[0])
}

func TestFilesUploadRequiresSelectedFile(t *testing.T) {
	env := newStoreEnv(t, false)
	files := NewFiles(env.api, zap.NewNop())

	_, err := files.Upload(context.Background(), "", nil, "", nil)
	require.Error(t, err)
	require.NotEmpty(t, files.LastError())
	require.Empty(t, files.Items())
}

func TestFilesUploadOverQuota(t *testing.T) {
	env := newStoreEnv(t, true)
	users := NewUsers(env.api, zap.NewNop())
	var fields UserUpdate
	tiny := int64(4)
	fields.MaxStorage = &tiny
	_, err := users.Update(context.Background(), env.user.ID, fields)
	require.NoError(t, err)

	files := NewFiles(env.api, zap.NewNop())
	_, err = files.Upload(context.Background(), "duzy.bin",
		strings.NewReader("za dużo bajtów"), "", nil)
	require.Error(t, err)

	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Przekroczono limit miejsca w chmurze", apiErr.Message)
	require.Empty(t, files.Items(), "failed upload adds nothing")
}

func TestFilesUpdateReplacesInPlace(t *testing.T) {
	env := newStoreEnv(t, false)
	seeded := env.backend.AddFile(env.user.ID, "a.txt", "stary", []byte("aa"))
	env.backend.AddFile(env.user.ID, "b.txt", "inny", []byte("bb"))
	files := NewFiles(env.api, zap.NewNop())

	_, err := files.List(context.Background(), 0)
	require.NoError(t, err)

	comment := "nowy komentarz"
	updated, err := files.Update(context.Background(), seeded.ID, FileUpdate{Comment: &comment})
	require.NoError(t, err)
	require.Equal(t, "nowy komentarz", updated.Comment)

	items := files.Items()
	require.Len(t, items, 2)
	require.Equal(t, "nowy komentarz", items[0].Comment)
	require.Equal(t, "inny", items[1].Comment)
}

func TestFilesUpdateUnknownIDLeavesCollection(t *testing.T) {
	env := newStoreEnv(t, false)
	seeded := env.backend.AddFile(env.user.ID, "a.txt", "", []byte("aa"))
	files := NewFiles(env.api, zap.NewNop())
	// Cache deliberately not primed with List.

	comment := "x"
	_, err := files.Update(context.Background(), seeded.ID, FileUpdate{Comment: &comment})
	require.NoError(t, err)
	require.Empty(t, files.Items(), "no cached match means a collection no-op")
}

func TestFilesRemove(t *testing.T) {
	env := newStoreEnv(t, false)
	seeded := env.backend.AddFile(env.user.ID, "a.txt", "", []byte("aa"))
	files := NewFiles(env.api, zap.NewNop())
	_, err := files.List(context.Background(), 0)
	require.NoError(t, err)

	require.NoError(t, files.Remove(context.Background(), seeded.ID))
	for _, item := range files.Items() {
		require.NotEqual(t, seeded.ID, item.ID)
	}

	// A second remove of the same id is a reported failure, not a silent
	// success.
	err = files.Remove(context.Background(), seeded.ID)
	require.Error(t, err)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.NotEmpty(t, files.LastError())
	require.Empty(t, files.Items())
}

func TestFilesDownload(t *testing.T) {
	env := newStoreEnv(t, false)
	seeded := env.backend.AddFile(env.user.ID, "a.txt", "", []byte("tajna zawartość"))
	files := NewFiles(env.api, zap.NewNop())

	data, err := files.Download(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, "tajna zawartość", string(data))
}

func TestFilesShareURL(t *testing.T) {
	env := newStoreEnv(t, false)
	files := NewFiles(env.api, zap.NewNop())

	url := files.ShareURL(models.File{SharedLink: "abc123xyz"})
	require.Equal(t, env.api.BaseURL()+"/storage/shared/abc123xyz/", url)
	require.True(t, strings.HasSuffix(url, "/"))
}

func TestFilesSharedLinkServesContent(t *testing.T) {
	env := newStoreEnv(t, false)
	seeded := env.backend.AddFile(env.user.ID, "a.txt", "", []byte("publiczne dane"))

	// The public link works without any credential.
	data, err := env.api.Download(context.Background(), "/storage/shared/"+seeded.SharedLink+"/")
	require.NoError(t, err)
	require.Equal(t, "publiczne dane", string(data))
}

func TestFilesAuthFailureLeavesItems(t *testing.T) {
	env := newStoreEnv(t, false)
	env.backend.AddFile(env.user.ID, "a.txt", "", []byte("aa"))
	files := NewFiles(env.api, zap.NewNop())

	before, err := files.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, before, 1)

	env.backend.SetUserActive(env.user.ID, false)

	_, err = files.List(context.Background(), 0)
	require.Error(t, err)
	var authErr *apiclient.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, authErr.Error(), files.LastError())
	require.Equal(t, before, files.Items(), "items survive an auth failure untouched")
}

func TestFilesCancellationSettlesSilently(t *testing.T) {
	env := newStoreEnv(t, false)
	env.backend.AddFile(env.user.ID, "a.txt", "", []byte("aa"))
	files := NewFiles(env.api, zap.NewNop())

	before, err := files.List(context.Background(), 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = files.List(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, files.LastError(), "cancellation is not surfaced as an error")
	require.Equal(t, before, files.Items())
	require.False(t, files.Loading())
}

func TestTrackerDiscardsStaleSettle(t *testing.T) {
	var tr tracker
	var items []string

	slowList := tr.begin(false)
	fastDelete := tr.begin(true)

	// The newer operation settles first.
	require.NoError(t, tr.settle(context.Background(), fastDelete, true, nil, func() {
		items = []string{"po-usunięciu"}
	}))

	// The older one settles later and is discarded.
	require.NoError(t, tr.settle(context.Background(), slowList, false, nil, func() {
		items = []string{"stara-lista"}
	}))

	require.Equal(t, []string{"po-usunięciu"}, items)
}
