package export

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// BuildHistoryPDF renders the records as a paginated table.
func BuildHistoryPDF(h History) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(15,
		text.NewCol(12, "Meter history", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(18,
		col.New(12).Add(
			text.New("Device: "+h.DeviceID, props.Text{Top: 0}),
			text.New("Node: "+h.NodeID, props.Text{Top: 5}),
			text.New(fmt.Sprintf("Generated: %s  Records: %d", h.GeneratedAt.UTC().Format(time.RFC3339), len(h.Records)), props.Text{Top: 10}),
		),
	)

	header := props.Text{Style: fontstyle.Bold, Size: 9}
	headerRight := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}
	m.AddRow(8,
		text.NewCol(4, "Timestamp (UTC)", header),
		text.NewCol(2, "Current (A)", headerRight),
		text.NewCol(2, "Voltage (V)", headerRight),
		text.NewCol(2, "Power factor", headerRight),
		text.NewCol(2, "Apparent (kVA)", headerRight),
	)

	cell := props.Text{Size: 8}
	cellRight := props.Text{Size: 8, Align: align.Right}
	for _, r := range h.Records {
		m.AddRow(6,
			text.NewCol(4, r.Timestamp.UTC().Format("2006-01-02 15:04:05"), cell),
			text.NewCol(2, formatFloat(r.Current), cellRight),
			text.NewCol(2, formatFloat(r.Voltage), cellRight),
			text.NewCol(2, formatFloat(r.PowerFactor), cellRight),
			text.NewCol(2, formatFloat(r.ApparentPower), cellRight),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
