package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gpdir16/LocalKeys/internal/storage"
)

func main() {
	// ---- status ----
	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	statusData := statusCmd.String("data", defaultDataDir(), "daemon data directory")

	// ---- projects ----
	projectsCmd := flag.NewFlagSet("projects", flag.ExitOnError)
	projectsData := projectsCmd.String("data", defaultDataDir(), "daemon data directory")

	// ---- keys ----
	keysCmd := flag.NewFlagSet("keys", flag.ExitOnError)
	keysData := keysCmd.String("data", defaultDataDir(), "daemon data directory")
	keysProject := keysCmd.String("project", "", "project name")

	// ---- get ----
	getCmd := flag.NewFlagSet("get", flag.ExitOnError)
	getData := getCmd.String("data", defaultDataDir(), "daemon data directory")
	getProject := getCmd.String("project", "", "project name")
	getKey := getCmd.String("key", "", "secret key")

	// ---- getbatch ----
	batchCmd := flag.NewFlagSet("getbatch", flag.ExitOnError)
	batchData := batchCmd.String("data", defaultDataDir(), "daemon data directory")
	batchProject := batchCmd.String("project", "", "project name")
	batchKeys := batchCmd.String("keys", "", "comma-separated secret keys")

	// ---- set ----
	setCmd := flag.NewFlagSet("set", flag.ExitOnError)
	setData := setCmd.String("data", defaultDataDir(), "daemon data directory")
	setProject := setCmd.String("project", "", "project name")
	setKey := setCmd.String("key", "", "secret key")
	setValue := setCmd.String("value", "", "secret value")

	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "status":
		_ = statusCmd.Parse(os.Args[2:])
		dieIf(call(*statusData, "status", nil))

	case "projects":
		_ = projectsCmd.Parse(os.Args[2:])
		dieIf(call(*projectsData, "listProjects", nil))

	case "keys":
		_ = keysCmd.Parse(os.Args[2:])
		dieIf(call(*keysData, "listSecretKeys", map[string]any{"projectName": *keysProject}))

	case "get":
		_ = getCmd.Parse(os.Args[2:])
		dieIf(call(*getData, "getSecret", map[string]any{
			"projectName": *getProject,
			"key":         *getKey,
		}))

	case "getbatch":
		_ = batchCmd.Parse(os.Args[2:])
		dieIf(call(*batchData, "getBatchSecrets", map[string]any{
			"projectName": *batchProject,
			"keys":        splitKeys(*batchKeys),
		}))

	case "set":
		_ = setCmd.Parse(os.Args[2:])
		dieIf(call(*setData, "setSecret", map[string]any{
			"projectName": *setProject,
			"key":         *setKey,
			"value":       *setValue,
		}))

	default:
		usage()
	}
}

func usage() {
	fmt.Print(`localkeysctl commands:

  status                                        daemon and vault state
  projects                                      list projects
  keys     --project NAME                       list secret keys (no values)
  get      --project NAME --key KEY             read one secret (needs approval)
  getbatch --project NAME --keys K1,K2          read several secrets (needs approval)
  set      --project NAME --key KEY --value V   store a secret

All commands accept --data DIR when the daemon runs with a non-default
data directory.
`)
}

// call reads the discovery record, sends one authenticated action, and
// prints the response. Reads may block on the daemon-side approval prompt,
// so the HTTP timeout leaves the gate's 30 seconds plenty of room.
func call(dataDir, action string, data any) error {
	store, err := storage.NewFileStore(dataDir)
	if err != nil {
		return err
	}
	rec, err := storage.ReadDiscovery(store)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("daemon not running (no discovery record)")
	}
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{"action": action, "data": data})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%d/", rec.Host, rec.Port)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+rec.AuthToken)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 45 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))

	if ok, _ := out["success"].(bool); !ok {
		os.Exit(1)
	}
	return nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func dieIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".localkeys"
	}
	return filepath.Join(home, ".localkeys")
}
