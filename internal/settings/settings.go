package settings

import (
	"bufio"
	"net/url"
	"os"
	"regexp"
	"strings"
)

const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

func NewSettings() *AppSettings {
	return &AppSettings{
		ConfigPath:               getEnvOrDefault("FISHERMAN_CONFIG", "fisherman.yml"),
		Host:                     getEnvOrDefault("FISHERMAN_HOST", "127.0.0.1"),
		LogLevel:                 getEnvOrDefault("FISHERMAN_LOG_LEVEL", "info"),
		DBType:                   getEnvOrDefault("FISHERMAN_DB_TYPE", DBTypeSQLite),
		SQLiteDatabase:           getEnvOrDefault("FISHERMAN_DB_PATH", "file:fisherman.sqlite"),
		PostgresConnectionString: os.Getenv("FISHERMAN_DB_CONNECTION_STRING"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

type AppSettings struct {
	ConfigPath               string
	Host                     string
	LogLevel                 string
	DBType                   string
	SQLiteDatabase           string
	PostgresConnectionString string
}

// SQLiteDbString is a modernc.org/sqlite DSN. Pragmas are applied to every
// new connection of the pool.
func (as *AppSettings) SQLiteDbString(readonly bool) string {
	params := make(url.Values)
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "cache_size(-20000)")
	if readonly {
		params.Add("mode", "ro")
	} else {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_txlock", "immediate")
		params.Add("mode", "rwc")
	}

	return as.SQLiteDatabase + "?" + params.Encode()
}

// ReadDotenv exports KEY=value lines of the file at path into the environment.
// A missing file is not an error.
func ReadDotenv(path string) error {
	re := regexp.MustCompile(`^[^0-9][A-Z0-9_]+=.+$`)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && line[0] != '#' && re.Match(line) {
			name, value, _ := strings.Cut(string(line), "=")
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			value = strings.Trim(value, `"`)
			os.Setenv(name, value)
		}
	}
	return scanner.Err()
}
