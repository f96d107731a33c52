package main

import (
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/TheMichaelB/shelfkey/internal/models"
)

func renderLibrary(lib models.Library) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"User", "Book", "Title", "Format", "File", "Key file"})

	users := make([]string, 0, len(lib))
	for id := range lib {
		users = append(users, id)
	}
	sort.Strings(users)

	for _, userID := range users {
		books := lib[userID]
		ids := make([]string, 0, len(books))
		for id := range books {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, bookID := range ids {
			rec := books[bookID]
			storage, _ := rec["storage"].(map[string]any)
			tw.AppendRow(table.Row{
				userID,
				bookID,
				text.Trim(rec.Title(), 40),
				rec.Format(),
				stringField(storage, "filename"),
				stringField(storage, "keyFilename"),
			})
		}
	}

	tw.AppendFooter(table.Row{"", "", "", "", "Books", lib.BookCount()})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignLeft, AlignFooter: text.AlignRight},
	})

	return tw.Render()
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
