// Command gatectl is the operator CLI: evaluate an event locally against a
// gate config, run the drift updater by hand, and inspect or verify the
// run journal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gateward/internal/executor"
	"gateward/internal/forge"
	"gateward/internal/gate"
	"gateward/internal/journal"
	"gateward/internal/orchestrator"
	"gateward/internal/updater"
	"gateward/pkg/logger"
	"gateward/pkg/utils"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  gatectl evaluate -config gate.yaml -event push -branch main [-actor name]")
	fmt.Println("  gatectl update-pin -config gate.yaml [-base main] [-propose]")
	fmt.Println("  gatectl journal <inspect|verify> <journal.jsonl>")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "evaluate":
		cmdEvaluate(os.Args[2:])
	case "update-pin":
		cmdUpdatePin(os.Args[2:])
	case "journal":
		cmdJournal(os.Args[2:])
	default:
		usage()
	}
}

func cmdEvaluate(args []string) {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", "gate.yaml", "gate config path")
	eventType := fs.String("event", "push", "event type: push or pull_request")
	branch := fs.String("branch", "main", "branch the event refers to")
	actor := fs.String("actor", "", "authorship identity of the event")
	number := fs.Int("number", 0, "proposed change number")
	timeout := fs.Duration("timeout", 5*time.Minute, "per-run timeout")
	_ = fs.Parse(args)

	cfg, err := gate.Load(*configPath)
	if err != nil {
		fmt.Println("cannot load gate config:", err)
		os.Exit(1)
	}

	zlog, err := logger.New(envOr("GATECTL_LOG_LEVEL", "warn"))
	if err != nil {
		panic(err)
	}
	orch := orchestrator.New(zlog, executor.NewLocal(zlog), *timeout)

	ev := gate.Event{
		ID:     "local",
		Type:   gate.EventType(*eventType),
		Branch: *branch,
		Actor:  *actor,
		Number: *number,
	}

	res, err := orch.Evaluate(context.Background(), cfg, ev)
	if err != nil {
		fmt.Println("evaluation error:", err)
		os.Exit(1)
	}

	for _, name := range res.Order {
		jr := res.Jobs[name]
		fmt.Printf("%-20s %s\n", name, jr.Status)
		for _, rr := range jr.Runs {
			if rr.TupleKey == "" {
				continue
			}
			fmt.Printf("  %-18s %s\n", rr.TupleKey, rr.Status)
		}
	}
	if res.Admitted {
		fmt.Println("\nadmitted")
		return
	}
	fmt.Println("\nnot admitted")
	os.Exit(1)
}

func cmdUpdatePin(args []string) {
	fs := flag.NewFlagSet("update-pin", flag.ExitOnError)
	configPath := fs.String("config", "gate.yaml", "gate config path")
	base := fs.String("base", "main", "base branch for the proposed change")
	repoRoot := fs.String("repo", ".", "repository root")
	propose := fs.Bool("propose", false, "open a proposed change via the hosting platform")
	_ = fs.Parse(args)

	now := time.Now()

	if !*propose {
		// Dry rewrite only: substitute the pin in place, no proposed change.
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Println("cannot read gate config:", err)
			os.Exit(1)
		}
		updated, pin, changed, err := updater.Rewrite(data, now)
		if err != nil {
			fmt.Println("update failed:", err)
			os.Exit(1)
		}
		if !changed {
			fmt.Println("pin already current:", pin)
			return
		}
		if err := os.WriteFile(*configPath, updated, 0644); err != nil {
			fmt.Println("cannot write gate config:", err)
			os.Exit(1)
		}
		fmt.Println("pin updated to", pin)
		return
	}

	zlog, err := logger.New(envOr("GATECTL_LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	u := updater.New(zlog, forge.NewGitHub(*repoRoot), *base)
	change, err := u.Update(context.Background(), *configPath, now)
	if err != nil {
		if errors.Is(err, updater.ErrPinNotFound) {
			fmt.Println("no version pin found; config left untouched")
		} else {
			fmt.Println("update failed:", err)
		}
		os.Exit(1)
	}
	if change == nil {
		fmt.Println("pin already current; nothing proposed")
		return
	}
	fmt.Printf("proposed change #%d (%s)\n", change.Number, change.HeadBranch)
}

func cmdJournal(args []string) {
	if len(args) < 2 {
		usage()
	}
	cmd, path := args[0], args[1]

	j, err := journal.Open(path)
	if err != nil {
		fmt.Println("cannot open journal:", err)
		os.Exit(1)
	}

	switch cmd {
	case "inspect":
		for _, rec := range j.Records() {
			tuple := rec.Tuple
			if tuple == "" {
				tuple = "-"
			}
			fmt.Printf("index=%d evaluation=%s job=%s tuple=%s status=%s hash=%s\n",
				rec.Index, rec.EvaluationID, rec.Job, tuple, rec.Status, rec.Hash[:16])
		}
	case "verify":
		if err := j.VerifyChain(); err != nil {
			fmt.Println("journal verification FAILED:", err)
			os.Exit(1)
		}
		// Cross-check saved run logs against their journaled hashes.
		for _, rec := range j.Records() {
			if rec.LogPath == "" {
				continue
			}
			h, err := utils.HashFile(rec.LogPath)
			if err != nil {
				fmt.Printf("warning: cannot hash log %s: %v\n", rec.LogPath, err)
				continue
			}
			if h != rec.LogHash {
				fmt.Printf("journal verification FAILED: log %s does not match journaled hash (index %d)\n", rec.LogPath, rec.Index)
				os.Exit(1)
			}
		}
		fmt.Println("journal verification ok")
	default:
		usage()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
