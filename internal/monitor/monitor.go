package monitor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/guildview/panel-service/config"
	"github.com/guildview/panel-service/internal/domain/model"
)

// How many poll intervals the traffic sparkline remembers.
const trafficHistory = 60

// Run drives the live terminal dashboard until q or Ctrl-C.
func Run(ctx context.Context, cfg config.MonitorConfig) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal ui: %w", err)
	}
	defer ui.Close()

	refresh := cfg.Refresh
	if refresh <= 0 {
		refresh = 2 * time.Second
	}

	client := NewStatsClient(cfg)
	view := newDashboard(cfg.URL)

	grid := ui.NewGrid()
	width, height := ui.TerminalDimensions()
	grid.SetRect(0, 0, width, height)
	grid.Set(
		ui.NewRow(0.15, view.header),
		ui.NewRow(0.45,
			ui.NewCol(0.5, view.relay),
			ui.NewCol(0.5, view.mirror),
		),
		ui.NewRow(0.4,
			ui.NewCol(0.5, view.traffic),
			ui.NewCol(0.5, view.archive),
		),
	)

	poll := func() {
		report, err := client.Fetch(ctx)
		view.update(report, err)
		ui.Render(grid)
	}
	poll()

	events := ui.PollEvents()
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				resize := e.Payload.(ui.Resize)
				grid.SetRect(0, 0, resize.Width, resize.Height)
				ui.Clear()
				ui.Render(grid)
			}
		case <-ticker.C:
			poll()
		}
	}
}

// dashboard owns the widgets and the little state needed to derive
// per-interval traffic from monotonic counters.
type dashboard struct {
	header  *widgets.Paragraph
	relay   *widgets.Table
	mirror  *widgets.Table
	archive *widgets.Paragraph
	traffic *widgets.SparklineGroup

	line          *widgets.Sparkline
	lastDelivered uint64
	seeded        bool
}

func newDashboard(url string) *dashboard {
	header := widgets.NewParagraph()
	header.Title = " guildview panel monitor "
	header.Text = fmt.Sprintf("connecting to %s ...", url)

	relay := widgets.NewTable()
	relay.Title = " relay "
	relay.RowSeparator = false
	relay.Rows = [][]string{{"waiting for first poll", ""}}

	mirror := widgets.NewTable()
	mirror.Title = " mirror "
	mirror.RowSeparator = false
	mirror.Rows = [][]string{{"waiting for first poll", ""}}

	archive := widgets.NewParagraph()
	archive.Title = " archive "
	archive.Text = "waiting for first poll"

	line := widgets.NewSparkline()
	line.LineColor = ui.ColorGreen
	traffic := widgets.NewSparklineGroup(line)
	traffic.Title = " delivered / interval "

	return &dashboard{
		header:  header,
		relay:   relay,
		mirror:  mirror,
		archive: archive,
		traffic: traffic,
		line:    line,
	}
}

func (d *dashboard) update(report *model.StatsReport, err error) {
	if err != nil {
		d.header.Text = fmt.Sprintf("[unreachable](fg:red) %v", err)
		return
	}

	d.header.Text = fmt.Sprintf("[online](fg:green)  %s %s  up %s  captured %s",
		report.Service, report.Version,
		report.Uptime.Truncate(time.Second),
		report.CapturedAt.Format("15:04:05"),
	)

	hub := report.Hub
	d.relay.Rows = [][]string{
		{"sessions", strconv.Itoa(hub.Sessions)},
		{"guild topics", strconv.Itoa(hub.GuildTopics)},
		{"channel topics", strconv.Itoa(hub.ChannelTopics)},
		{"published", strconv.FormatUint(hub.Published, 10)},
		{"delivered", strconv.FormatUint(hub.Delivered, 10)},
		{"dropped", strconv.FormatUint(hub.Dropped, 10)},
		{"evicted", strconv.FormatUint(hub.Evicted, 10)},
	}

	mirror := report.Mirror
	d.mirror.Rows = [][]string{
		{"guilds", strconv.Itoa(mirror.Guilds)},
		{"channels", strconv.Itoa(mirror.Channels)},
		{"members", strconv.Itoa(mirror.Members)},
		{"messages", strconv.Itoa(mirror.Messages)},
	}

	archive := report.Archive
	if !archive.Enabled {
		d.archive.Text = "[disabled](fg:yellow)"
	} else {
		d.archive.Text = fmt.Sprintf(
			"recorded  %d\nflushes   %d\nfailures  %d\ndropped   %d",
			archive.Recorded, archive.Flushes, archive.Failures, archive.Dropped,
		)
	}

	// The first sample only seeds the baseline; a delta against zero
	// would graph the panel's whole lifetime as one spike.
	if d.seeded {
		delta := hub.Delivered - d.lastDelivered
		d.line.Data = append(d.line.Data, float64(delta))
		if len(d.line.Data) > trafficHistory {
			d.line.Data = d.line.Data[len(d.line.Data)-trafficHistory:]
		}
	}
	d.lastDelivered = hub.Delivered
	d.seeded = true
}
