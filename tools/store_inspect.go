package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"market-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Read-only dump of the gateway keyspace, for poking at a store without
// starting the server. Scans either conversations or messages depending on
// the prefix flag.
func main() {
	dbPath := flag.String("db", "./badger", "Path to badger DB")
	prefix := flag.String("prefix", "conv:", "Prefix to scan (conv: or msg:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	color.Cyan.Printf("Scanning %q in %s\n", *prefix, *dbPath)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	switch *prefix {
	case "msg:":
		table.SetHeader([]string{"Key", "Conversation", "Sender", "At", "Content"})
	default:
		table.SetHeader([]string{"Key", "Product", "Participant A", "Participant B", "Last Message At"})
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			err := item.Value(func(value []byte) error {
				switch *prefix {
				case "msg:":
					var message repositories.DiskMessage
					if err := json.Unmarshal(value, &message); err != nil {
						fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
						return nil
					}
					content := message.Content
					if len(content) > 40 {
						content = content[:40] + "..."
					}
					table.Append([]string{
						rawKey,
						shortID(message.ConversationID),
						message.SenderID,
						message.CreatedAt.Format("15:04:05"),
						content,
					})
				default:
					var conversation repositories.DiskConversation
					if err := json.Unmarshal(value, &conversation); err != nil {
						fmt.Printf("Error unmarshaling key %s: %v\n", rawKey, err)
						return nil
					}
					table.Append([]string{
						rawKey,
						conversation.ProductID,
						conversation.ParticipantA,
						conversation.ParticipantB,
						conversation.LastMessageAt.Format("2006-01-02 15:04:05"),
					})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
