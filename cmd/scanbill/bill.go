package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ekisa-team/scanbill/internal/billing"
	"github.com/ekisa-team/scanbill/internal/detect"
	"github.com/ekisa-team/scanbill/internal/service"
)

var (
	billModel string
	billEmail string
	billJSON  bool
)

var billCommand = &cli.Command{
	Name:      "bill",
	Usage:     "Scan product images and print the bill",
	ArgsUsage: "<image> [image...]",
	Description: `Every image is one scan at the checkout: detected products above the confidence threshold are added to the cart.
				The bill is stored in Redis when server.redis.addr or SCANBILL_REDIS_ADDR is set.`,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Path to the ONNX model", Destination: &billModel},
		&cli.StringFlag{Name: "email", Usage: "Send the receipt to this address", Destination: &billEmail},
		&cli.BoolFlag{Name: "json", Usage: "Print the bill as JSON", Destination: &billJSON},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() == 0 {
			return errors.New("bill expects at least one image")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		bills, err := newStore(cfg.Server.Redis)
		if err != nil {
			return err
		}
		defer bills.Close()

		detector, err := openDetector(cfg.Detector, modelPath(billModel))
		if err != nil {
			return err
		}
		defer detect.Shutdown()
		defer detector.Close()

		// Images are separate scans, not a live feed.
		cart := billing.NewCart(newCatalog(cfg.Billing), billing.WithCooldown(0))
		for _, path := range cCtx.Args().Slice() {
			dets, err := detectFile(cCtx, detector, path)
			if err != nil {
				return err
			}
			cart.AddScans(service.Scans(dets))
		}

		svc := service.NewBilling(bills, nil, taxRate(cfg.Billing), nil)
		bill, err := svc.Create(cCtx.Context, cart.Products(), billEmail)
		if bill == nil {
			return err
		}

		if billJSON {
			if werr := writeJSON(cCtx.App.Writer, bill); werr != nil {
				return werr
			}
			return err
		}
		printBill(cCtx, bill)
		return err
	},
}

func printBill(cCtx *cli.Context, bill *billing.Bill) {
	w := cCtx.App.Writer
	fmt.Fprintf(w, "Bill %s (%s)\n", bill.ID, bill.Date.Format("2006-01-02 15:04"))
	for _, p := range bill.Products {
		fmt.Fprintf(w, "  %-20s %3d x %10s %10s\n", p.Name, p.Quantity, billing.FormatCurrency(p.Price), billing.FormatCurrency(p.Total()))
	}
	fmt.Fprintf(w, "  %-20s %26s\n", "Subtotal", billing.FormatCurrency(bill.Total))
	fmt.Fprintf(w, "  %-20s %26s\n", "Tax", billing.FormatCurrency(bill.Tax))
	fmt.Fprintf(w, "  %-20s %26s\n", "Total", billing.FormatCurrency(bill.GrandTotal))
	if bill.CustomerEmail != "" {
		fmt.Fprintf(w, "Receipt sent to %s\n", bill.CustomerEmail)
	}
}
