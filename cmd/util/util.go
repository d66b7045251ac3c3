package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/keel/lib/db"
	"github.com/ValentinKolb/keel/lib/db/engines/rowan"
	"github.com/ValentinKolb/keel/lib/store"
	"github.com/ValentinKolb/keel/lib/store/lstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("keel")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// DataFile is a store snapshot file opened into a rowan-backed local store.
// Commands operate on the in-memory store and call Save to write the state
// back to the file.
type DataFile struct {
	path     string
	database db.KVDB
	store    store.IStore
}

// OpenData loads the snapshot file configured via --data (or KEEL_DATA) into
// a fresh local store. A missing file yields an empty store, so the first
// invocation can bootstrap the data file.
func OpenData() (*DataFile, error) {
	path := viper.GetString("data")
	if path == "" {
		return nil, fmt.Errorf("no data file configured (--data flag or KEEL_DATA)")
	}

	database := rowan.NewRowanDB(rowan.DefaultOptions())

	f, err := os.Open(path)
	if err == nil {
		loadErr := database.Load(f)
		_ = f.Close()
		if loadErr != nil {
			return nil, fmt.Errorf("load data file %s: %w", path, loadErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return &DataFile{
		path:     path,
		database: database,
		store:    lstore.NewLocalStore(func() db.KVDB { return database }),
	}, nil
}

// Store returns the store backed by the data file.
func (d *DataFile) Store() store.IStore {
	return d.store
}

// Save writes the current store state back to the data file.
func (d *DataFile) Save() error {
	f, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("create data file %s: %w", d.path, err)
	}
	if err := d.database.Save(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("save data file %s: %w", d.path, err)
	}
	return f.Close()
}
