package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostguardian/guardian/model"
)

func TestLog_AppendsEvent(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "audit.json"))
	l.Log(model.AuditAlert, "sshd", map[string]string{"reason": "cpu"})

	history := l.History("")
	require.Len(t, history, 1)
	assert.Equal(t, model.AuditAlert, history[0].Type)
	assert.Equal(t, "sshd", history[0].ProcessName)
}

func TestLog_FlushDueEvery50Events(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "audit.json"))
	for i := 0; i < 49; i++ {
		assert.False(t, l.Log(model.AuditSystem, "", nil))
	}
	assert.True(t, l.Log(model.AuditSystem, "", nil))
}

func TestLog_TruncatesToMaxEntries(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "audit.json"))
	for i := 0; i < model.MaxAuditEntries+10; i++ {
		l.Log(model.AuditSystem, "", nil)
	}
	assert.Equal(t, model.MaxAuditEntries, l.Len())
}

func TestHistory_FiltersByProcessName(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "audit.json"))
	l.Log(model.AuditAlert, "a", nil)
	l.Log(model.AuditAlert, "b", nil)
	l.Log(model.AuditAlert, "a", nil)

	history := l.History("a")
	assert.Len(t, history, 2)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	l1 := New(path, WithClock(func() time.Time { return time.Unix(1000, 0) }))
	l1.Log(model.AuditIntervention, "proc", map[string]string{"k": "v"})
	require.NoError(t, l1.Save())

	l2 := New(path)
	require.NoError(t, l2.Load())
	assert.Equal(t, 1, l2.Len())
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "nope.json"))
	assert.NoError(t, l.Load())
}

func TestLoad_CorruptFileIsQuarantined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.json")
	require.NoError(t, os.WriteFile(path, []byte("{bad"), 0o600))

	l := New(path)
	assert.Error(t, l.Load())

	_, err := os.Stat(path + ".bad")
	assert.NoError(t, err)
}

func TestClearAll_WipesInMemoryTrail(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "audit.json"))
	l.Log(model.AuditSystem, "", nil)
	l.ClearAll()
	assert.Equal(t, 0, l.Len())
}
