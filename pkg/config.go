package xcpindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
)

// configFileName is the catalog configuration file
const configFileName = "config.ini"

// Config is the catalog configuration, loaded from the catalog dir and
// overridable by CLI flags.
type Config struct {
	Workers int // reserved: sizing hint for future scan tooling
	Tokens  int // in-flight multibatches per phase
	Window  int // batches per multibatch (ibatch)
	Log     LogOptions
}

// CatalogDir returns the catalog directory, $XCP_CATALOG or ~/.xcp,
// creating it if needed.
func CatalogDir() (string, error) {
	dir := os.Getenv("XCP_CATALOG")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".xcp")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create catalog directory %s: %w", dir, err)
	}
	return dir, nil
}

// LoadConfig reads the catalog config, writing a default one on first use
func LoadConfig() (*Config, error) {
	dir, err := CatalogDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, configFileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefaultConfig(path, dir); err != nil {
			return nil, err
		}
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	perf := file.Section("performance")
	logSec := file.Section("log")
	cfg := &Config{
		Workers: perf.Key("workers").MustInt(DefaultWorkers),
		Tokens:  perf.Key("tokens").MustInt(DefaultTokens),
		Window:  perf.Key("ibatch").MustInt(DefaultWindow),
		Log: LogOptions{
			Level:      logSec.Key("level").MustString("info"),
			File:       logSec.Key("file").MustString(""),
			MaxSizeMB:  logSec.Key("max_size_mb").MustInt(50),
			MaxBackups: logSec.Key("max_backups").MustInt(10),
		},
	}
	return cfg, nil
}

func writeDefaultConfig(path, catalogDir string) error {
	file := ini.Empty()

	perf := file.Section("performance")
	perf.Key("workers").SetValue(fmt.Sprintf("%d", DefaultWorkers))
	perf.Key("tokens").SetValue(fmt.Sprintf("%d", DefaultTokens))
	perf.Key("ibatch").SetValue(fmt.Sprintf("%d", DefaultWindow))

	logSec := file.Section("log")
	logSec.Key("level").SetValue("info")
	logSec.Key("file").SetValue(filepath.Join(catalogDir, "xcp.log"))
	logSec.Key("max_size_mb").SetValue("50")
	logSec.Key("max_backups").SetValue("10")

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write default config %s: %w", path, err)
	}
	log.Infof("created default config %s", path)
	return nil
}

// ResolveIndexPath resolves a repair target: an existing path is used as
// given, anything else is treated as an index id under the catalog.
func ResolveIndexPath(arg string) (string, error) {
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}
	if strings.ContainsRune(arg, os.PathSeparator) {
		return "", fmt.Errorf("index %s does not exist", arg)
	}
	dir, err := CatalogDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, arg+IndexSuffix)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no index %q in catalog %s", arg, dir)
	}
	return path, nil
}
