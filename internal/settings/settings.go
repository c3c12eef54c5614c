package settings

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NewSettings reads process settings and secrets from the environment.
func NewSettings() *AppSettings {
	settings := AppSettings{
		Port:            getEnvOrDefault("TANUKI_PORT", ":3000"),
		DBDriver:        getEnvOrDefault("TANUKI_DB_DRIVER", DriverSQLite),
		DBPath:          getEnvOrDefault("TANUKI_DB_PATH", ""),
		DBURL:           getEnvOrDefault("TANUKI_DB_URL", ""),
		DataDir:         getEnvOrDefault("TANUKI_DATA_DIR", "data"),
		ArtifactKey:     getEnvOrDefault("TANUKI_ARTIFACT_KEY", ""),
		GitHubToken:     getEnvOrDefault("GITHUB_TOKEN", ""),
		JiraBaseURL:     getEnvOrDefault("JIRA_BASE_URL", ""),
		JiraEmail:       getEnvOrDefault("JIRA_EMAIL", ""),
		JiraAPIToken:    getEnvOrDefault("JIRA_API_TOKEN", ""),
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnvOrDefault("GEMINI_API_KEY", ""),
	}
	if !strings.HasPrefix(settings.Port, ":") && !strings.Contains(settings.Port, ":") {
		settings.Port = ":" + settings.Port
	}
	if settings.DBPath == "" {
		settings.DBPath = filepath.Join(settings.DataDir, "tanuki.sqlite")
	}
	return &settings
}

func getEnvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return strings.TrimSpace(value)
}

type AppSettings struct {
	Port     string
	DBDriver string
	DBPath   string
	DBURL    string
	// DataDir holds the sqlite database and per-run artifacts.
	DataDir string
	// ArtifactKey enables artifact encryption at rest when set.
	ArtifactKey string

	GitHubToken     string
	JiraBaseURL     string
	JiraEmail       string
	JiraAPIToken    string
	AnthropicAPIKey string
	GeminiAPIKey    string
}

func (as *AppSettings) Validate() error {
	switch as.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if as.DBURL == "" {
			return errors.New("TANUKI_DB_URL is required when TANUKI_DB_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("unsupported TANUKI_DB_DRIVER %q", as.DBDriver)
	}
	switch len(as.ArtifactKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("TANUKI_ARTIFACT_KEY must be 16, 24 or 32 bytes, got %d", len(as.ArtifactKey))
	}
	return nil
}

func (as *AppSettings) JiraConfigured() bool {
	return as.JiraBaseURL != "" && as.JiraEmail != "" && as.JiraAPIToken != ""
}

func (as *AppSettings) ArtifactDir() string {
	return filepath.Join(as.DataDir, "reviews")
}

// DSN returns the connection string for the configured driver. Read-only
// sqlite connections open the file with mode=ro.
func (as *AppSettings) DSN(readonly bool) string {
	if as.DBDriver == DriverPostgres {
		return as.DBURL
	}
	return as.SQLiteDbString(readonly)
}

func (as *AppSettings) SQLiteDbString(readonly bool) string {
	params := make(url.Values)
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "foreign_keys(ON)")
	if readonly {
		params.Add("mode", "ro")
	} else {
		params.Add("_txlock", "immediate")
		params.Add("mode", "rwc")
	}

	return "file:" + filepath.ToSlash(as.DBPath) + "?" + params.Encode()
}

// ReadDotenv loads KEY=value lines from path. Variables already present in
// the environment win.
func ReadDotenv(path string) error {
	re := regexp.MustCompile(`^[^0-9#][A-Z0-9_]+=.+$`)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening dotenv: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !re.MatchString(line) {
			continue
		}
		name, value, _ := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}
