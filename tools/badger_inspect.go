package main

import (
	"chat-presence/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Prints the participants and the message log of a badger store. The store
// is opened read-only, so it can be inspected while the server runs.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	section := flag.String("section", "all", "participants, messages or all")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *section == "all" || *section == "participants" {
		if err = printParticipants(db); err != nil {
			log.Fatal(err)
		}
	}
	if *section == "all" || *section == "messages" {
		if err = printMessages(db); err != nil {
			log.Fatal(err)
		}
	}
}

func printParticipants(db *badger.DB) error {
	participants, err := repositories.DumpParticipants(db)
	if err != nil {
		return err
	}
	color.Cyan.Printf("Participants (%d)\n", len(participants))

	table := newTable([]string{"Name", "Last heartbeat", "Silent for"})
	for _, p := range participants {
		table.Append([]string{
			p.Name,
			p.LastHeartbeat.Local().Format(time.DateTime),
			time.Since(p.LastHeartbeat).Truncate(time.Second).String(),
		})
	}
	table.Render()
	fmt.Println()
	return nil
}

func printMessages(db *badger.DB) error {
	messages, err := repositories.DumpMessages(db)
	if err != nil {
		return err
	}
	color.Cyan.Printf("Messages (%d)\n", len(messages))

	table := newTable([]string{"#", "Time", "Type", "From", "To", "Text"})
	for i, m := range messages {
		kind := string(m.Type)
		if m.IsStatus() {
			kind = color.Yellow.Sprint(kind)
		}
		table.Append([]string{strconv.Itoa(i + 1), m.Time, kind, m.From, m.To, m.Text})
	}
	table.Render()
	return nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
