package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cabinetdb/cabinet/internal/access"
	"github.com/cabinetdb/cabinet/internal/client"
	"github.com/cabinetdb/cabinet/internal/config"
	"github.com/cabinetdb/cabinet/internal/engine"
	"github.com/cabinetdb/cabinet/internal/lang"
	"github.com/cabinetdb/cabinet/internal/server"
	"github.com/cabinetdb/cabinet/internal/storage"
	"github.com/cabinetdb/cabinet/pkg"
)

const usage = `usage: cabinet [flags] <command> [args]

commands:
  serve                      start the server
  create-db <name>           create a database
  ls                         list databases
  tables <db>                list tables in a database
  create-table <db> <table>  create a table (schema inferred on first insert)
  run <db> <command>         run a raw command
  select <db> <table> [col=val ...]
  insert <db> <table> col=val [col=val ...]
  shell <db>                 interactive session (remote with -host)

flags:
`

func main() {
	configPath := flag.String("config", "cabinet.yml", "path to config file")
	host := flag.String("host", "", "remote server host (empty means local)")
	port := flag.Int("port", 0, "remote server port (defaults to config port)")
	user := flag.String("user", "", "remote username")
	pass := flag.String("pass", "", "remote password")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("load config:", err)
	}
	pkg.SetLogLevel(cfg.ParsedLogLevel())
	if *port == 0 {
		*port = cfg.Port
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	switch args[0] {
	case "serve":
		e := mustEngine(cfg)
		gate := access.NewGate(e, cfg.InternalDB, cfg.UserControl)
		if err := server.New(e, gate, cfg.Port).ListenAndServe(); err != nil {
			fail("serve:", err)
		}
	case "create-db":
		requireArgs(args, 2)
		if err := mustEngine(cfg).CreateDatabase(args[1]); err != nil {
			fail("create-db:", err)
		}
		fmt.Println("created database", args[1])
	case "ls":
		for _, name := range mustEngine(cfg).ListDatabases() {
			fmt.Println(name)
		}
	case "tables":
		requireArgs(args, 2)
		names, err := mustEngine(cfg).ListTables(args[1])
		if err != nil {
			fail("tables:", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	case "create-table":
		requireArgs(args, 3)
		if err := mustEngine(cfg).CreateTable(args[1], args[2]); err != nil {
			fail("create-table:", err)
		}
		fmt.Println("created table", args[2])
	case "run":
		requireArgs(args, 3)
		runCommand(cfg, *host, *port, *user, *pass, args[1], strings.Join(args[2:], " "))
	case "select":
		requireArgs(args, 3)
		cmd := "SELECT * FROM " + args[2]
		if len(args) > 3 {
			cmd += " WHERE " + strings.Join(args[3:], ", ")
		}
		runCommand(cfg, *host, *port, *user, *pass, args[1], cmd)
	case "insert":
		requireArgs(args, 4)
		cols, vals := splitPairs(args[3:])
		cmd := fmt.Sprintf("INSERT INTO %s ( %s ) VALUES ( %s )",
			args[2], strings.Join(cols, ", "), strings.Join(vals, ", "))
		runCommand(cfg, *host, *port, *user, *pass, args[1], cmd)
	case "shell":
		requireArgs(args, 2)
		shell(cfg, *host, *port, *user, *pass, args[1])
	default:
		fmt.Fprintln(os.Stderr, "unknown command", args[0])
		flag.Usage()
		os.Exit(1)
	}
}

func fail(msg string, err error) {
	fmt.Fprintln(os.Stderr, msg, err)
	os.Exit(1)
}

func requireArgs(args []string, n int) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "missing arguments")
		flag.Usage()
		os.Exit(1)
	}
}

func mustEngine(cfg config.Config) *engine.Engine {
	store, err := storage.NewStore(cfg.Root, cfg.IndexFile, cfg.ReservedPrefix)
	if err != nil {
		fail("open store:", err)
	}
	return engine.New(store)
}

// splitPairs keeps col=val arguments intact for the command string and
// collects the column names for the INSERT column list.
func splitPairs(pairs []string) (cols []string, vals []string) {
	for _, pair := range pairs {
		col, val, found := strings.Cut(pair, "=")
		if !found {
			fail("insert:", fmt.Errorf("argument %q is not col=val", pair))
		}
		cols = append(cols, col)
		vals = append(vals, val)
	}
	return cols, vals
}

func runCommand(cfg config.Config, host string, port int, user, pass, db, cmd string) {
	if host != "" {
		c, err := client.Dial(client.Config{Host: host, Port: port, DB: db, User: user, Password: pass})
		if err != nil {
			fail("connect:", err)
		}
		defer c.Close()
		res, err := c.Run(cmd)
		if err != nil {
			fail("run:", err)
		}
		printJSON(res)
		return
	}

	res, err := lang.Run(mustEngine(cfg), db, cmd)
	if err != nil {
		fail("run:", err)
	}
	printJSON(res)
}

func shell(cfg config.Config, host string, port int, user, pass, db string) {
	var runOne func(cmd string) (any, error)
	if host != "" {
		c, err := client.Dial(client.Config{Host: host, Port: port, DB: db, User: user, Password: pass})
		if err != nil {
			fail("connect:", err)
		}
		defer c.Close()
		runOne = func(cmd string) (any, error) { return c.Run(cmd) }
	} else {
		e := mustEngine(cfg)
		runOne = func(cmd string) (any, error) { return lang.Run(e, db, cmd) }
	}

	fmt.Printf("cabinet shell, database %s (empty line quits)\n", db)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return
		}
		res, err := runOne(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		printJSON(res)
	}
}

func printJSON(v any) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("encode result:", err)
	}
	fmt.Println(string(buf))
}
