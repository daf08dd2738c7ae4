package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jredh-dev/waypost/internal/geocode"
	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/qr"
)

func distanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "distance FROM TO",
		Short:   "Great-circle distance between two lat,lng points",
		Example: "  waypost distance 43.6532,-79.3832 45.5017,-73.5673",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := geo.ParseCoordinate(args[0])
			if err != nil {
				return err
			}
			to, err := geo.ParseCoordinate(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f km\n", geo.DistanceKm(from, to))
			return nil
		},
	}
}

func qrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qr [PAYLOAD]",
		Short: "Extract the item id from a scanned QR payload",
		Long:  "Reads the payload from the argument, or from stdin when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if len(args) == 1 {
				payload = args[0]
			} else {
				data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				payload = strings.TrimSpace(string(data))
			}
			id, source, err := qr.ExtractWithSource(payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t(%s)\n", id, source)
			return nil
		},
	}
}

func geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode ADDRESS",
		Short: "Look up address candidates with the configured geocoder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			g := geocode.NewNominatim(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent,
				geocode.WithRate(cfg.Geocoder.RatePerSecond),
				geocode.WithLimit(cfg.Geocoder.Limit),
			)
			candidates, err := g.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for _, c := range candidates {
				fmt.Fprintf(out, "%s\t%s\t%s\n", c.RawID, c.Coordinate, c.DisplayName)
			}
			return nil
		},
	}
}
