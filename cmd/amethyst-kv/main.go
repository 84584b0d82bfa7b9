package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"amethystkv/internal/compact"
	"amethystkv/internal/config"
	"amethystkv/internal/flush"
	"amethystkv/internal/store"
)

const historyFile = ".amethyst_history"

func main() {
	dataDir := "./amethyst-data"
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	cfg, err := config.Load(filepath.Join(dataDir, config.FileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}

	pollInterval := time.Duration(cfg.PollInterval)

	fl := flush.New(st, cfg.FlushThreshold, pollInterval)
	if err := fl.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start flusher: %v\n", err)
		os.Exit(1)
	}

	cp := compact.New(dataDir, cfg.CompactionTrigger, cfg.CompactionBatchSize, st.Lock, pollInterval)
	cp.SetStore(st)
	if err := cp.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start compactor: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := cp.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "compactor stop: %v\n", err)
		}
		if err := fl.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "flusher stop: %v\n", err)
		}
		if err := st.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "store close: %v\n", err)
		}
	}()

	fmt.Println("amethyst-kv - embeddable LSM key-value store")
	fmt.Printf("data dir: %s\n", dataDir)
	fmt.Printf("config: flush_threshold=%d compaction_trigger=%d compaction_batch_size=%d\n",
		cfg.FlushThreshold, cfg.CompactionTrigger, cfg.CompactionBatchSize)
	fmt.Println("commands: put <key> <value> | get <key> | del <key> | stats | exit")

	runREPL(dataDir, st)
}

func runREPL(dataDir string, st *store.Store) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := filepath.Join(dataDir, historyFile)
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "input error: %v\n", err)
			break
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		line.AppendHistory(trimmed)

		parts := strings.Fields(trimmed)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "put":
			if len(parts) != 3 {
				fmt.Println("usage: put <key> <value>")
				continue
			}
			if err := st.Put([]byte(parts[1]), []byte(parts[2])); err != nil {
				fmt.Printf("put error: %v\n", err)
				continue
			}
			fmt.Println("ok")
		case "get":
			if len(parts) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			value, ok, err := st.Get([]byte(parts[1]))
			if err != nil {
				fmt.Printf("get error: %v\n", err)
				continue
			}
			if !ok {
				fmt.Println("(not found)")
				continue
			}
			fmt.Printf("%s\n", string(value))
		case "del", "delete":
			if len(parts) != 2 {
				fmt.Println("usage: del <key>")
				continue
			}
			if err := st.Delete([]byte(parts[1])); err != nil {
				fmt.Printf("delete error: %v\n", err)
				continue
			}
			fmt.Println("ok")
		case "stats":
			st.Active.Mu.Lock()
			activeSize := st.Active.MT.Size()
			st.Active.Mu.Unlock()
			st.Immutable.Mu.Lock()
			pending := st.Immutable.MT != nil
			st.Immutable.Mu.Unlock()
			fmt.Printf("active memtable keys: %d\n", activeSize)
			fmt.Printf("immutable flush pending: %v\n", pending)
		case "exit", "quit":
			if f, err := os.Create(historyPath); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
			return
		default:
			fmt.Println("unknown command")
		}
	}

	if f, err := os.Create(historyPath); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}
