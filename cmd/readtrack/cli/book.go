package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/readtrackapp/readtrack-server/internal/service"
)

func newBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the book library",
	}

	cmd.AddCommand(newBookAddCmd())
	cmd.AddCommand(newBookListCmd())
	cmd.AddCommand(newBookDoneCmd())

	return cmd
}

func newBookAddCmd() *cobra.Command {
	var req service.CreateBookRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the library",
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			book, err := a.books.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("Added %q (%s, %d pages)\n", book.Title, book.ID, book.TotalPages)
			return nil
		}),
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "book title (required)")
	cmd.Flags().StringVar(&req.Author, "author", "", "author name")
	cmd.Flags().IntVar(&req.TotalPages, "pages", 0, "total page count (required)")
	cmd.Flags().IntVar(&req.CurrentPage, "page", 0, "page you are currently on")
	cmd.Flags().IntVar(&req.Difficulty, "difficulty", 0, "difficulty 1 (easy) to 5 (hard)")
	cmd.Flags().StringVar(&req.Category, "category", "", "category label")

	return cmd
}

func newBookListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books in the library",
		RunE: runWithApp(func(a *app, cmd *cobra.Command, _ []string) error {
			books, err := a.books.List(cmd.Context(), all)
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Println("No books yet. Add one with: readtrack book add")
				return nil
			}
			for _, b := range books {
				marker := " "
				if !b.IsActive {
					marker = "x"
				}
				fmt.Printf("[%s] %-40s %s  page %d/%d (%.0f%%)\n",
					marker, b.Title, b.ID, b.CurrentPage, b.TotalPages, b.PercentComplete())
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&all, "all", false, "include retired books")

	return cmd
}

func newBookDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <book-id>",
		Short: "Retire a book, keeping its reading history",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(a *app, cmd *cobra.Command, args []string) error {
			if err := a.books.Deactivate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Retired %s\n", args[0])
			return nil
		}),
	}
}
