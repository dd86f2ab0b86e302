package main

// Interactive shell for the engine. Statements end with a semicolon and run
// under autocommit unless an explicit BEGIN is active. Backslash commands:
//
//	\d  print the catalog
//	\h  help
//	\q  quit

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"
	simpledb "github.com/xuchao20110611/simple-db-hw-2022"
)

const usageText = `Enter a SQL query terminated by a ; to process it. Commands:
  \d : display the catalog
  \h : this help
  \q : quit`

func printResults(plan simpledb.Operator, tid simpledb.TransactionID) error {
	iter, err := plan.Iterator(tid)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", plan.Descriptor().HeaderString(true))
	n := 0
	for {
		tup, err := iter()
		if err != nil {
			return err
		}
		if tup == nil {
			break
		}
		fmt.Printf("%s\n", tup.PrettyPrintString(true))
		n++
	}
	fmt.Printf("(%d results)\n", n)
	return nil
}

func main() {
	catalogFile := flag.String("catalog", "catalog.txt", "catalog file to load")
	dataDir := flag.String("path", ".", "directory holding table data files")
	logFileName := flag.String("log", "simpledb.log", "update log file")
	flag.Parse()

	bp, err := simpledb.NewBufferPool(simpledb.DefaultBufferPoolPages)
	if err != nil {
		log.Fatalf("failed to create buffer pool: %v", err)
	}
	c := simpledb.NewCatalog(*catalogFile, bp, *dataDir)
	if err := c.LoadSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load catalog %s: %v\n", *catalogFile, err)
		os.Exit(1)
	}
	lf, err := simpledb.NewLogFile(*logFileName, c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log %s: %v\n", *logFileName, err)
		os.Exit(1)
	}
	bp.SetLogFile(lf)

	rl, err := readline.New("> ")
	if err != nil {
		log.Fatalf("failed to initialize readline: %v", err)
	}
	defer rl.Close()

	fmt.Println("Welcome to SimpleDB.")
	fmt.Println(usageText)

	var (
		query      string
		currentTid simpledb.TransactionID
		inXaction  bool
	)

	abort := func() {
		if inXaction {
			bp.AbortTransaction(currentTid)
			inXaction = false
		}
	}

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case `\q`:
			abort()
			return
		case `\h`:
			fmt.Println(usageText)
			continue
		case `\d`:
			fmt.Print(c.CatalogString())
			continue
		}

		query += " " + line
		if !strings.HasSuffix(line, ";") {
			rl.SetPrompt("... ")
			continue
		}
		rl.SetPrompt("> ")
		sql := strings.TrimSuffix(strings.TrimSpace(query), ";")
		query = ""

		qType, plan, err := simpledb.Parse(c, sql)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}

		switch qType {
		case simpledb.BeginXactionType:
			if inXaction {
				fmt.Println("error: a transaction is already running")
				continue
			}
			currentTid = simpledb.NewTID()
			if err := bp.BeginTransaction(currentTid); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			inXaction = true
		case simpledb.CommitXactionType:
			if !inXaction {
				fmt.Println("error: no transaction is running")
				continue
			}
			bp.CommitTransaction(currentTid)
			inXaction = false
		case simpledb.AbortXactionType:
			if !inXaction {
				fmt.Println("error: no transaction is running")
				continue
			}
			bp.AbortTransaction(currentTid)
			inXaction = false
		case simpledb.IteratorType:
			tid := currentTid
			if !inXaction {
				tid = simpledb.NewTID()
				if err := bp.BeginTransaction(tid); err != nil {
					fmt.Printf("error: %v\n", err)
					continue
				}
			}
			if err := printResults(plan, tid); err != nil {
				fmt.Printf("error: %v\n", err)
				if inXaction {
					abort()
					fmt.Println("transaction aborted")
				} else {
					bp.AbortTransaction(tid)
				}
				continue
			}
			if !inXaction {
				bp.CommitTransaction(tid)
			}
		}
	}
	abort()
}
