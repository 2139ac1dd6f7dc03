package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/super1207/llobinstall/internal/testutil"
)

func TestRegisterEntrypoint(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	loaderDir := `C:\Users\tester\LiteLoaderQQNT-main`

	changed, err := registerEntrypoint(env.LauncherPath(), loaderDir)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, LauncherContent(loaderDir), readFile(t, env.LauncherPath()))
	assert.Equal(t, testutil.StockLauncher, readFile(t, env.LauncherPath()+BackupSuffix))

	changed, err = registerEntrypoint(env.LauncherPath(), loaderDir)
	require.NoError(t, err)
	assert.False(t, changed, "same content is not rewritten")
}

func TestRegisterEntrypointKeepsFirstBackup(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	_, err := registerEntrypoint(env.LauncherPath(), "/first/loader")
	require.NoError(t, err)
	changed, err := registerEntrypoint(env.LauncherPath(), "/second/loader")
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, LauncherContent("/second/loader"), readFile(t, env.LauncherPath()))
	assert.Equal(t, testutil.StockLauncher, readFile(t, env.LauncherPath()+BackupSuffix))
}

func TestRegisterEntrypointMissingLauncher(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	require.NoError(t, os.Remove(env.LauncherPath()))

	changed, err := registerEntrypoint(env.LauncherPath(), "/loader")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoFileExists(t, env.LauncherPath()+BackupSuffix)
}

func TestRegisterEntrypointMissingDirectory(t *testing.T) {
	launcher := filepath.Join(t.TempDir(), "resources", "app", "app_launcher", "index.js")

	_, err := registerEntrypoint(launcher, "/loader")
	assert.Error(t, err)
}

func TestRegisterEntrypointRejectsUnsafeLoaderDir(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	for _, dir := range []string{"C:\\Users\\a`b\\loader", `C:\Users\${x}\loader`} {
		_, err := registerEntrypoint(env.LauncherPath(), dir)
		assert.ErrorIs(t, err, ErrUnsafeLoaderPath, dir)
	}
	assert.Equal(t, testutil.StockLauncher, readFile(t, env.LauncherPath()))
}

func TestLauncherContent(t *testing.T) {
	assert.Equal(t,
		"require(String.raw`C:\\Users\\me\\LiteLoaderQQNT-main`);\r\nrequire('./launcher.node').load('external_index', module);",
		LauncherContent(`C:\Users\me\LiteLoaderQQNT-main`))
}
