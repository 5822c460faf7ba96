package barter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"machinebarter.dev/barter/internal/credentials"
	"machinebarter.dev/barter/internal/credentials/mem"
	"machinebarter.dev/barter/pkg/document"
	"machinebarter.dev/barter/pkg/prompt"
	"machinebarter.dev/barter/pkg/transform"
)

type testEnv struct {
	home  string
	store string
	cfg   *Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	home := t.TempDir()
	store := filepath.Join(home, ".docker", "machine", "machines")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".docker", "machine", "certs"), 0o755))
	return &testEnv{
		home:  home,
		store: store,
		cfg: &Config{
			Home:      home,
			StoreDir:  store,
			BackupDir: filepath.Join(home, ".docker", "machine", "backups"),
		},
	}
}

func (e *testEnv) barter(t *testing.T, stores []credentials.Store, p prompt.Prompter) *Barter {
	t.Helper()
	b, err := New(e.cfg, stores, p)
	require.NoError(t, err)
	b.now = func() time.Time { return time.Unix(1700000000, 0) }
	b.SetOutput(&bytes.Buffer{})
	return b
}

// installMachine creates a live machine the way docker-machine leaves it.
func (e *testEnv) installMachine(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(e.store, name)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	certs := filepath.Join(e.home, ".docker", "machine", "certs")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_rsa"), []byte("SSHKEY"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.pem"), []byte("CERTDATA"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(certs, "ca.pem"), []byte("CADATA"), 0o600))

	config := fmt.Sprintf(`{
    "ConfigVersion": 3,
    "Driver": {
        "IPAddress": "192.168.99.100",
        "MachineName": %q,
        "SSHUser": "docker",
        "SSHPort": 22,
        "SSHKeyPath": %q,
        "StorePath": %q,
        "Password": "hunter2"
    },
    "DriverName": "virtualbox",
    "HostOptions": {
        "AuthOptions": {
            "CertDir": %q,
            "CaCertPath": %q,
            "ServerCertPath": %q
        }
    },
    "Name": %q
}
`, name, filepath.Join(dir, "id_rsa"), filepath.Join(e.home, ".docker", "machine"),
		certs, filepath.Join(certs, "ca.pem"), filepath.Join(dir, "server.pem"), name)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(config), 0o600))
	return dir
}

func readConfig(t *testing.T, path string) *document.Node {
	t.Helper()
	doc, err := readDocument(path)
	require.NoError(t, err)
	return doc
}

func value(t *testing.T, n *document.Node, path ...string) any {
	t.Helper()
	cur := n
	for _, p := range path {
		next, ok := cur.Get(p)
		require.True(t, ok, "missing field %v", p)
		cur = next
	}
	return cur.Value
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.installMachine(t, "dev")
	b := env.barter(t, nil, nil)

	var out bytes.Buffer
	require.NoError(t, b.Export(t.Context(), "dev", &out))
	assert.NotContains(t, out.String(), "hunter2")

	doc, err := document.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, transform.Omitted, value(t, doc, "Driver", "Password"))
	assert.Equal(t, "SSHKEY", value(t, doc, "Driver", "SSHKeyPath"))
	assert.Equal(t, "~/.docker/machine", value(t, doc, "Driver", "StorePath"))
	assert.Equal(t, "~/.docker/machine/certs", value(t, doc, "HostOptions", "AuthOptions", "CertDir"))
	assert.Equal(t, "CADATA", value(t, doc, "HostOptions", "AuthOptions", "CaCertPath"))
	assert.Equal(t, "CERTDATA", value(t, doc, "HostOptions", "AuthOptions", "ServerCertPath"))
	assert.Equal(t, "virtualbox", value(t, doc, "DriverName"))
}

func TestExportMissingMachine(t *testing.T) {
	env := newTestEnv(t)
	b := env.barter(t, nil, nil)
	err := b.Export(t.Context(), "nope", &bytes.Buffer{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = b.Export(t.Context(), "../etc", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrInvalidMachineName)
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	dir := env.installMachine(t, "dev")
	canned := &prompt.Canned{Answers: map[string]string{"virtualbox password: ": "hunter2"}}
	b := env.barter(t, nil, canned)

	var out bytes.Buffer
	require.NoError(t, b.Export(t.Context(), "dev", &out))
	shared := writeFile(t, t.TempDir(), "dev.json", out.String())
	require.NoError(t, os.RemoveAll(dir))

	result, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Equal(t, "dev", result.Name)
	assert.Equal(t, dir, result.Dir)
	assert.Equal(t, filepath.Join(dir, "config.json"), result.ConfigPath)
	assert.Equal(t, []string{
		filepath.Join(dir, "ca.pem"),
		filepath.Join(dir, "id_rsa"),
		filepath.Join(dir, "server.pem"),
	}, result.Written)
	assert.Empty(t, result.Backup)
	assert.Equal(t, []string{"virtualbox password: "}, canned.Asked)

	doc := readConfig(t, result.ConfigPath)
	assert.Equal(t, "hunter2", value(t, doc, "Driver", "Password"))
	assert.Equal(t, filepath.Join(dir, "id_rsa"), value(t, doc, "Driver", "SSHKeyPath"))
	assert.Equal(t, filepath.Join(env.home, ".docker", "machine"), value(t, doc, "Driver", "StorePath"))
	assert.Equal(t, filepath.Join(dir, "ca.pem"), value(t, doc, "HostOptions", "AuthOptions", "CaCertPath"))

	data, err := os.ReadFile(filepath.Join(dir, "server.pem"))
	require.NoError(t, err)
	assert.Equal(t, "CERTDATA", string(data))

	info, err := os.Stat(result.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestImportTwice(t *testing.T) {
	env := newTestEnv(t)
	b := env.barter(t, nil, nil)
	shared := writeFile(t, t.TempDir(), "m.json", `{
		"Name": "m1",
		"DriverName": "generic",
		"Driver": {"SSHKeyPath": "KEY1"}
	}`)
	_, err := b.Import(t.Context(), shared)
	require.NoError(t, err)

	writeFile(t, filepath.Dir(shared), "m.json", `{
		"Name": "m1",
		"DriverName": "generic",
		"Driver": {"SSHKeyPath": "KEY2"}
	}`)
	result, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(result.Dir, "id_rsa"))
	require.NoError(t, err)
	assert.Equal(t, "KEY2", string(data))
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"unknown path field", `{"Name": "m1", "Driver": {"FooPath": "data"}}`, transform.ErrUnknownArtifact},
		{"missing name", `{"DriverName": "generic"}`, ErrMissingName},
		{"empty name", `{"Name": ""}`, ErrMissingName},
		{"numeric name", `{"Name": 7}`, ErrMissingName},
		{"bad name", `{"Name": "../escape"}`, ErrInvalidMachineName},
		{"missing driver", `{"Name": "m1", "Driver": {"Password": "omitted"}}`, transform.ErrMissingDriverName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			b := env.barter(t, nil, &prompt.Canned{})
			shared := writeFile(t, t.TempDir(), "m.json", tt.input)
			_, err := b.Import(t.Context(), shared)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestImportNotAnObject(t *testing.T) {
	env := newTestEnv(t)
	b := env.barter(t, nil, nil)
	shared := writeFile(t, t.TempDir(), "m.json", `["m1"]`)
	_, err := b.Import(t.Context(), shared)
	assert.Error(t, err)
}

func TestImportAcceptsComments(t *testing.T) {
	env := newTestEnv(t)
	b := env.barter(t, nil, nil)
	shared := writeFile(t, t.TempDir(), "m.json", `{
		// hand edited
		"Name": "m1",
		"DriverName": "generic",
	}`)
	result, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Equal(t, "m1", value(t, readConfig(t, result.ConfigPath), "Name"))
}

func TestImportNoPrompt(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.NoPrompt = true
	canned := &prompt.Canned{Answers: map[string]string{"generic password: ": "pw"}}
	b := env.barter(t, nil, canned)
	shared := writeFile(t, t.TempDir(), "m.json", `{"Name": "m1", "DriverName": "generic", "Driver": {"Password": "omitted"}}`)
	_, err := b.Import(t.Context(), shared)
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	assert.Empty(t, canned.Asked)
}

func TestImportUsesVault(t *testing.T) {
	env := newTestEnv(t)
	vault := mem.NewMemoryStore()
	vault.Add("Password", "from-vault")
	vault.Add("Username", "ops")
	canned := &prompt.Canned{}
	b := env.barter(t, []credentials.Store{vault}, canned)
	shared := writeFile(t, t.TempDir(), "m.json", `{
		"Name": "m1",
		"DriverName": "vmwarevsphere",
		"Driver": {"Username": "omitted", "Password": "omitted", "APIKey": ""}
	}`)
	result, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Empty(t, canned.Asked)
	doc := readConfig(t, result.ConfigPath)
	assert.Equal(t, "from-vault", value(t, doc, "Driver", "Password"))
	assert.Equal(t, "ops", value(t, doc, "Driver", "Username"))
	assert.Equal(t, "", value(t, doc, "Driver", "APIKey"))
}

func TestImportBackup(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Backup = true
	env.installMachine(t, "dev")
	b := env.barter(t, nil, &prompt.Canned{Answers: map[string]string{"virtualbox password: ": "pw"}})

	var out bytes.Buffer
	require.NoError(t, b.Export(t.Context(), "dev", &out))
	shared := writeFile(t, t.TempDir(), "dev.json", out.String())

	result, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.cfg.BackupDir, "dev-1700000000.tar.gz"), result.Backup)
	data, err := os.ReadFile(result.Backup)
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2])
}

func TestImportNoBackupForNewMachine(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Backup = true
	b := env.barter(t, nil, nil)
	shared := writeFile(t, t.TempDir(), "m.json", `{"Name": "fresh"}`)
	result, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Empty(t, result.Backup)
	assert.NoDirExists(t, env.cfg.BackupDir)
}

func TestImportDiffs(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Diffs = true
	b := env.barter(t, nil, &prompt.Canned{Answers: map[string]string{"generic password: ": "s3cret"}})
	var diffs bytes.Buffer
	b.SetOutput(&diffs)
	dir := t.TempDir()

	shared := writeFile(t, dir, "m.json", `{"Name": "m1", "DriverName": "generic", "Driver": {"IPAddress": "10.0.0.1", "Password": "omitted"}}`)
	_, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Contains(t, diffs.String(), "Diffs for m1")
	assert.NotContains(t, diffs.String(), "s3cret")

	diffs.Reset()
	_, err = b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Equal(t, "No changes to m1\n", diffs.String())

	diffs.Reset()
	writeFile(t, dir, "m.json", `{"Name": "m1", "DriverName": "generic", "Driver": {"IPAddress": "10.0.0.2", "Password": "omitted"}}`)
	_, err = b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Contains(t, diffs.String(), "10.0.0.2")
	assert.True(t, strings.HasPrefix(diffs.String(), "Diffs for m1"))
}

func TestNewRejectsBadArtifacts(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Artifacts = map[string]string{"SSHKeyPath": "../id_rsa"}
	_, err := New(env.cfg, nil, nil)
	assert.Error(t, err)

	env.cfg.Artifacts = map[string]string{"TLSBundlePath": "bundle.pem"}
	b, err := New(env.cfg, nil, nil)
	require.NoError(t, err)
	base, ok := b.Artifacts().Lookup("TLSBundlePath")
	assert.True(t, ok)
	assert.Equal(t, "bundle.pem", base)
}

func TestImportLogsOnlyAtDebug(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	env := newTestEnv(t)
	b := env.barter(t, nil, nil)
	shared := writeFile(t, t.TempDir(), "m.json", `{"Name": "quiet", "DriverName": "generic", "Driver": {"SSHKeyPath": "KEY"}}`)
	result, err := b.Import(t.Context(), shared)
	require.NoError(t, err)
	assert.Equal(t, "quiet", result.Name)
	assert.Empty(t, logs.String())
}
