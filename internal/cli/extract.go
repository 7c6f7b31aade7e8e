package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/FranksOps/tendril/internal/export"
	"github.com/spf13/cobra"
)

func (a *app) newLinksCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "links <url>",
		Short: "Print the absolute links of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.fetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			links, err := sess.FilterLinks(filter)
			if err != nil {
				return err
			}
			return printLines(a.stdout(cmd), links)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "only print links containing this keyword")
	return cmd
}

func (a *app) newImagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "images <url>",
		Short: "Print the image sources of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.fetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			images, err := sess.Images()
			if err != nil {
				return err
			}
			return printLines(a.stdout(cmd), images)
		},
	}
}

func (a *app) newMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta <url>",
		Short: "Print the meta tags of a page as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.fetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			meta, err := sess.Metadata()
			if err != nil {
				return err
			}
			return printJSON(a.stdout(cmd), meta)
		},
	}
}

func (a *app) newTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <url> <selector>",
		Short: "Print the text of the first element matching a CSS selector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.fetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text, err := sess.Text(args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout(cmd), text)
			return err
		},
	}
}

func (a *app) newTableCmd() *cobra.Command {
	var csvPath, jsonPath string
	cmd := &cobra.Command{
		Use:   "table <url> <selector>",
		Short: "Extract an HTML table as records",
		Long: `Extract the first table matching the selector. Header cells name the
columns; every following row with data cells becomes a record. Records are
printed as JSON unless --csv or --json names an output file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.fetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows, err := sess.Table(args[1])
			if err != nil {
				return err
			}

			switch {
			case csvPath != "":
				if err := export.WriteCSV(csvPath, rows); err != nil {
					return err
				}
				a.logger.Info("table written", "path", csvPath, "rows", len(rows))
			case jsonPath != "":
				if err := export.WriteJSON(jsonPath, rows); err != nil {
					return err
				}
				a.logger.Info("table written", "path", jsonPath, "rows", len(rows))
			default:
				return printJSON(a.stdout(cmd), rows)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "write records to this CSV file")
	cmd.Flags().StringVar(&jsonPath, "json", "", "write records to this JSON file")
	cmd.MarkFlagsMutuallyExclusive("csv", "json")
	return cmd
}

func printLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
