package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/997R8V10/aviation-calc-util/recipe"
)

// LedgerFile is the name of the applied-set record kept at a tree root.
const LedgerFile = ".avpkg-patches.json"

type ledger struct {
	// Applied maps a set id to the files it touched.
	Applied map[string][]string `json:"applied"`
}

func setID(set recipe.PatchSet) string {
	h := sha256.New()
	h.Write([]byte(set.Target))
	h.Write([]byte{0})
	h.Write([]byte(set.Diff))
	return hex.EncodeToString(h.Sum(nil))
}

func loadLedger(root string) (*ledger, error) {
	led := &ledger{Applied: make(map[string][]string)}
	data, err := os.ReadFile(filepath.Join(root, LedgerFile))
	if errors.Is(err, os.ErrNotExist) {
		return led, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, led); err != nil {
		return nil, fmt.Errorf("patch ledger: %w", err)
	}
	if led.Applied == nil {
		led.Applied = make(map[string][]string)
	}
	return led, nil
}

func (l *ledger) save(root string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(root, LedgerFile), data, 0o644)
}
