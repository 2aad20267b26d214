package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dkeye/danmaku/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestUserRepositoryCreateFind(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	u := domain.NewUser("a@b.c", "alice", "hash", time.Now())
	require.NoError(t, repo.Create(u))
	assert.NotZero(t, u.ID)

	got, err := repo.FindByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.NickName)
	assert.True(t, got.CanStream)

	for _, account := range []string{"a@b.c", "alice", " alice "} {
		got, err = repo.FindByAccount(account)
		require.NoError(t, err, account)
		assert.Equal(t, u.ID, got.ID)
	}

	_, err = repo.FindByID(999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.FindByAccount("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, repo.Create(domain.NewUser("a@b.c", "other", "h", time.Now())), ErrDuplicate)
}

func TestUserRepositoryTaken(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	u := domain.NewUser("a@b.c", "alice", "hash", time.Now())
	require.NoError(t, repo.Create(u))

	taken, err := repo.EmailTaken("a@b.c", 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.EmailTaken("a@b.c", u.ID)
	require.NoError(t, err)
	assert.False(t, taken, "own email does not count")
	taken, err = repo.NickNameTaken("bob", 0)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUserRepositorySetFlag(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	a := domain.NewUser("a@b.c", "alice", "h", time.Now())
	b := domain.NewUser("b@b.c", "bob", "h", time.Now())
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	missing, err := repo.SetFlag([]domain.UserID{a.ID, 404, b.ID}, "can_send_danmaku", false)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{404}, missing)

	got, _ := repo.FindByID(b.ID)
	assert.False(t, got.CanSendDanmaku)
	assert.True(t, got.CanStream)

	_, err = repo.SetFlag([]domain.UserID{a.ID}, "pass_word", true)
	assert.Error(t, err)
}

func TestLogRepositoryPage(t *testing.T) {
	repo := NewLogRepository(setupTestDB(t))
	base := time.Now()
	for i := 0; i < 5; i++ {
		module := "room"
		if i%2 == 1 {
			module = "user"
		}
		require.NoError(t, repo.Insert(&domain.LogEntry{Time: base.Add(time.Duration(i) * time.Second), Module: module, Message: fmt.Sprint(i)}))
	}

	entries, total, err := repo.Page(1, 2, "")
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "4", entries[0].Message)

	entries, total, err = repo.Page(2, 2, "room")
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "0", entries[0].Message)
}

func TestAuditLogFlushesOnClose(t *testing.T) {
	repo := NewLogRepository(setupTestDB(t))
	audit := NewAuditLog(repo, 2)
	for i := 0; i < 10; i++ {
		audit.Record(domain.LogEntry{Time: time.Now(), Module: "room", Action: "CreateRoom", Success: true})
	}
	audit.Close()
	_, total, err := repo.Page(1, 50, "room")
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
}
