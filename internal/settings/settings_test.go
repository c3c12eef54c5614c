package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_ReadDotenv(t *testing.T) {
	t.Run("success - .env files is read into env variables", func(t *testing.T) {
		// arrange
		testDotEnvFile := filepath.Join(t.TempDir(), ".env.test")
		lines := []string{
			`#COMMENTED=asdf`,
			`TANUKI_TEST=1234`,
			``,
			`TANUKI_TEST2= 2345 `,
			`TANUKI_TEST3="a=b=c"`,
			`TANUKI_TEST_SET=from-file`,
		}
		require.NoError(t, os.WriteFile(testDotEnvFile, []byte(strings.Join(lines, "\n")), 0o600))
		t.Setenv("TANUKI_TEST_SET", "from-env")
		for _, k := range []string{"TANUKI_TEST", "TANUKI_TEST2", "TANUKI_TEST3", "COMMENTED"} {
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
		}

		// act
		err := ReadDotenv(testDotEnvFile)

		// assert
		require.NoError(t, err)
		assert.Equal(t, "1234", os.Getenv("TANUKI_TEST"))
		assert.Equal(t, "2345", os.Getenv("TANUKI_TEST2"))
		assert.Equal(t, "a=b=c", os.Getenv("TANUKI_TEST3"))
		assert.Equal(t, "from-env", os.Getenv("TANUKI_TEST_SET"))
		_, ok := os.LookupEnv("COMMENTED")
		assert.False(t, ok)
	})
	t.Run("failure - missing file", func(t *testing.T) {
		// act
		err := ReadDotenv(filepath.Join(t.TempDir(), "missing.env"))

		// assert
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestSettings_NewSettings(t *testing.T) {
	t.Run("success - defaults", func(t *testing.T) {
		// arrange
		for _, k := range []string{"TANUKI_PORT", "TANUKI_DB_DRIVER", "TANUKI_DB_PATH", "TANUKI_DATA_DIR", "JIRA_BASE_URL"} {
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
		}

		// act
		s := NewSettings()

		// assert
		assert.Equal(t, ":3000", s.Port)
		assert.Equal(t, DriverSQLite, s.DBDriver)
		assert.Equal(t, filepath.Join("data", "tanuki.sqlite"), s.DBPath)
		assert.Equal(t, filepath.Join("data", "reviews"), s.ArtifactDir())
		assert.False(t, s.JiraConfigured())
		assert.NoError(t, s.Validate())
	})
	t.Run("success - port without colon", func(t *testing.T) {
		// arrange
		t.Setenv("TANUKI_PORT", "8080")

		// act
		s := NewSettings()

		// assert
		assert.Equal(t, ":8080", s.Port)
	})
	t.Run("success - jira needs all three values", func(t *testing.T) {
		// arrange
		t.Setenv("JIRA_BASE_URL", "https://acme.atlassian.net")
		t.Setenv("JIRA_EMAIL", "bot@acme.test")
		t.Setenv("JIRA_API_TOKEN", "token")

		// act
		s := NewSettings()

		// assert
		assert.True(t, s.JiraConfigured())
	})
}

func TestSettings_Validate(t *testing.T) {
	testcases := []struct {
		name     string
		settings AppSettings
		errText  string
	}{
		{name: "postgres without url", settings: AppSettings{DBDriver: DriverPostgres}, errText: "TANUKI_DB_URL"},
		{name: "unknown driver", settings: AppSettings{DBDriver: "mysql"}, errText: "unsupported"},
		{name: "short artifact key", settings: AppSettings{DBDriver: DriverSQLite, ArtifactKey: "short"}, errText: "16, 24 or 32"},
	}
	for _, tc := range testcases {
		t.Run("failure - "+tc.name, func(t *testing.T) {
			// act
			err := tc.settings.Validate()

			// assert
			assert.ErrorContains(t, err, tc.errText)
		})
	}
}

func TestSettings_DSN(t *testing.T) {
	t.Run("success - sqlite read-only and read-write", func(t *testing.T) {
		// arrange
		s := AppSettings{DBDriver: DriverSQLite, DBPath: "data/tanuki.sqlite"}

		// act
		ro := s.DSN(true)
		rw := s.DSN(false)

		// assert
		assert.True(t, strings.HasPrefix(ro, "file:data/tanuki.sqlite?"))
		assert.Contains(t, ro, "mode=ro")
		assert.Contains(t, ro, "_pragma=busy_timeout%285000%29")
		assert.Contains(t, rw, "mode=rwc")
		assert.Contains(t, rw, "_txlock=immediate")
	})
	t.Run("success - postgres uses the url", func(t *testing.T) {
		// arrange
		s := AppSettings{DBDriver: DriverPostgres, DBURL: "postgres://tanuki@localhost/tanuki"}

		// act / assert
		assert.Equal(t, "postgres://tanuki@localhost/tanuki", s.DSN(true))
	})
}
