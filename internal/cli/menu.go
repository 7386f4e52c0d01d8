// Package cli implements the interactive terminal menu.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/blockedby/tgvideo/internal/caption"
	"github.com/blockedby/tgvideo/internal/collector"
	"github.com/blockedby/tgvideo/internal/logger"
	"github.com/blockedby/tgvideo/internal/models"
	"github.com/blockedby/tgvideo/internal/telegram"
)

// DateLayout is the day/month/year input format.
const DateLayout = "02/01/2006"

// how many downloaded videos the publish menu offers
const publishListLimit = 20

// input errors
var (
	ErrInvalidDate = errors.New("invalid date, use DD/MM/YYYY")
	ErrRangeOrder  = errors.New("end date is before start date")
)

// Collector is the download side of the menu.
type Collector interface {
	Scan(ctx context.Context, start, end time.Time) (*collector.ScanResult, error)
	DownloadOne(ctx context.Context, msg *telegram.Message, history []*telegram.Message) (*collector.DownloadResult, error)
	DownloadMessages(ctx context.Context, videos, history []*telegram.Message) (*collector.BatchResult, error)
	DownloadAll(ctx context.Context) (*collector.BatchResult, error)
}

// Publisher posts a local video to the destination channel.
type Publisher interface {
	Repost(ctx context.Context, path, description, thumbnail string) (int, error)
}

// VideoLister lists recorded downloads.
type VideoLister interface {
	ListDownloaded(ctx context.Context, limit int) ([]models.Video, error)
}

// Menu is the interactive main loop.
type Menu struct {
	lines <-chan string
	out   io.Writer
	now   func() time.Time

	collector Collector
	publisher Publisher // nil when no destination is configured
	videos    VideoLister
	ops       *collector.OperationManager
	source    string
	log       *logger.Logger
}

// Deps groups the services the menu drives.
type Deps struct {
	Collector Collector
	Publisher Publisher
	Videos    VideoLister
	Ops       *collector.OperationManager
	Source    string
	Log       *logger.Logger
}

// NewMenu creates a menu reading answers from in and printing to out.
func NewMenu(in io.Reader, out io.Writer, deps Deps) *Menu {
	ops := deps.Ops
	if ops == nil {
		ops = collector.NewOperationManager()
	}
	log := deps.Log
	if log == nil {
		log = logger.Get()
	}
	return &Menu{
		lines:     readLines(in),
		out:       out,
		now:       time.Now,
		collector: deps.Collector,
		publisher: deps.Publisher,
		videos:    deps.Videos,
		ops:       ops,
		source:    deps.Source,
		log:       log,
	}
}

// readLines feeds input lines to a channel so prompts can be abandoned on cancel.
// The channel is closed at EOF.
func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// ask prints a prompt and waits for one trimmed line.
// Returns io.EOF when input ends and the context error when ctx is done.
func (m *Menu) ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(m.out, prompt)
	select {
	case <-ctx.Done():
		fmt.Fprintln(m.out)
		return "", ctx.Err()
	case line, ok := <-m.lines:
		if !ok {
			fmt.Fprintln(m.out)
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// Run shows the main menu until the user exits, input ends or ctx is cancelled.
func (m *Menu) Run(ctx context.Context) error {
	m.rule()
	fmt.Fprintln(m.out, "Telegram Video Downloader")

	for {
		m.rule()
		fmt.Fprintln(m.out, "1. Download videos by date")
		fmt.Fprintln(m.out, "2. Download the entire channel")
		fmt.Fprintln(m.out, "3. Publish a downloaded video")
		fmt.Fprintln(m.out, "0. Exit")
		m.rule()

		choice, err := m.ask(ctx, "Choose an option (0-3): ")
		if err != nil {
			return exitErr(err)
		}

		switch choice {
		case "0":
			fmt.Fprintln(m.out, "Bye.")
			return nil
		case "1":
			err = m.downloadByDate(ctx)
		case "2":
			err = m.downloadAll(ctx)
		case "3":
			err = m.publish(ctx)
		default:
			fmt.Fprintln(m.out, "Invalid option, choose 0, 1, 2 or 3.")
			continue
		}

		// only input errors end the loop, everything else was reported already
		if isInputEnd(err) {
			return exitErr(err)
		}
	}
}

func (m *Menu) downloadByDate(ctx context.Context) error {
	start, end, err := m.askRange(ctx)
	if err != nil {
		if errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrRangeOrder) {
			fmt.Fprintf(m.out, "Error: %v\n", err)
			return nil
		}
		return err
	}

	fmt.Fprintf(m.out, "\nSearching videos from %s to %s...\n", start.Format(DateLayout), end.Format(DateLayout))
	var scan *collector.ScanResult
	err = m.ops.Run(ctx, "scan", func(ctx context.Context) error {
		var err error
		scan, err = m.collector.Scan(ctx, start, end)
		return err
	})
	if err != nil {
		m.reportError("search failed", err)
		return nil
	}
	if len(scan.Videos) == 0 {
		fmt.Fprintln(m.out, "No videos found in this period.")
		return nil
	}
	fmt.Fprintf(m.out, "\nFound %d videos.\n", len(scan.Videos))

	m.rule()
	fmt.Fprintln(m.out, "Download a specific video?")
	fmt.Fprintln(m.out, "1. Yes")
	fmt.Fprintln(m.out, "2. No (download all)")
	specific, err := m.askYesNo(ctx)
	if err != nil {
		return err
	}

	if !specific {
		return m.runBatch(ctx, "download by date", func(ctx context.Context) (*collector.BatchResult, error) {
			return m.collector.DownloadMessages(ctx, scan.Videos, scan.Messages)
		})
	}

	for {
		idx, err := m.pickVideo(ctx, scan)
		if err != nil || idx < 0 {
			return err
		}

		msg := scan.Videos[idx]
		err = m.ops.Run(ctx, "download", func(ctx context.Context) error {
			res, err := m.collector.DownloadOne(ctx, msg, scan.Messages)
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintf(m.out, "Already downloaded: %s\n", res.Path)
			} else {
				fmt.Fprintf(m.out, "Saved to %s\n", res.Path)
			}
			return nil
		})
		if err != nil {
			m.reportError("download failed", err)
		}

		m.rule()
		fmt.Fprintln(m.out, "Download another video?")
		fmt.Fprintln(m.out, "1. Yes")
		fmt.Fprintln(m.out, "2. No")
		more, err := m.askYesNo(ctx)
		if err != nil || !more {
			return err
		}
	}
}

// pickVideo lists the scanned videos and returns the chosen index, or -1 to go back.
func (m *Menu) pickVideo(ctx context.Context, scan *collector.ScanResult) (int, error) {
	m.rule()
	fmt.Fprintln(m.out, "Videos found:")
	m.rule()
	for i, v := range scan.Videos {
		title := collector.VideoTitle(v, scan.Messages)
		fmt.Fprintf(m.out, "%d. Date: %s - %s\n", i+1, v.Date.Format(DateLayout), shorten(title, 60))
	}
	m.rule()

	return m.askIndex(ctx, len(scan.Videos), "video")
}

// askIndex reads a 1-based choice in 1..n or 0 for back, re-prompting on bad input.
func (m *Menu) askIndex(ctx context.Context, n int, what string) (int, error) {
	for {
		answer, err := m.ask(ctx, fmt.Sprintf("\nChoose the %s number (1-%d) or 0 to go back: ", what, n))
		if err != nil {
			return -1, err
		}
		choice, err := strconv.Atoi(answer)
		if err != nil || choice < 0 || choice > n {
			fmt.Fprintf(m.out, "Invalid option, choose a number between 1 and %d or 0 to go back.\n", n)
			continue
		}
		return choice - 1, nil
	}
}

// askYesNo reads "1" (yes) or "2" (no); empty input means no.
func (m *Menu) askYesNo(ctx context.Context) (bool, error) {
	for {
		answer, err := m.ask(ctx, "Choose (1 or 2) [2]: ")
		if err != nil {
			return false, err
		}
		switch answer {
		case "1":
			return true, nil
		case "2", "":
			return false, nil
		}
		fmt.Fprintln(m.out, "Invalid option, choose 1 or 2.")
	}
}

// askRange reads a start and an optional end date.
func (m *Menu) askRange(ctx context.Context) (time.Time, time.Time, error) {
	fmt.Fprintln(m.out, "\nStart date (DD/MM/YYYY)")
	startStr, err := m.ask(ctx, "Date: ")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	fmt.Fprintln(m.out, "\nEnd date (DD/MM/YYYY), Enter for today")
	endStr, err := m.ask(ctx, "Date: ")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return ParseRange(startStr, endStr, m.now())
}

// ParseRange parses a DD/MM/YYYY date range in now's location.
// An empty end means the day of now.
func ParseRange(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	start, err := ParseDate(startStr, now.Location())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if strings.TrimSpace(endStr) != "" {
		if end, err = ParseDate(endStr, now.Location()); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s < %s", ErrRangeOrder, end.Format(DateLayout), start.Format(DateLayout))
	}
	return start, end, nil
}

// ParseDate parses a DD/MM/YYYY date.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func (m *Menu) downloadAll(ctx context.Context) error {
	fmt.Fprintln(m.out, "\nDownloading every video in the channel...")
	return m.runBatch(ctx, "download all", m.collector.DownloadAll)
}

func (m *Menu) runBatch(ctx context.Context, name string, fn func(ctx context.Context) (*collector.BatchResult, error)) error {
	var res *collector.BatchResult
	err := m.ops.Run(ctx, name, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)
		return err
	})
	if res != nil {
		m.printBatch(res)
	}
	if err != nil {
		m.reportError(name+" stopped", err)
	}
	return nil
}

func (m *Menu) printBatch(res *collector.BatchResult) {
	m.rule()
	fmt.Fprintf(m.out, "Found: %d  Downloaded: %d  Skipped: %d  Failed: %d\n",
		res.Found, res.Downloaded, res.Skipped, len(res.Failed))
	for _, f := range res.Failed {
		fmt.Fprintf(m.out, "  message %d: %v\n", f.MessageID, f.Err)
	}
}

func (m *Menu) publish(ctx context.Context) error {
	if m.publisher == nil {
		fmt.Fprintln(m.out, "Publishing is disabled: set TG_DESTINATION_CHANNEL.")
		return nil
	}

	videos, err := m.videos.ListDownloaded(ctx, publishListLimit)
	if err != nil {
		m.reportError("list downloaded videos", err)
		return nil
	}
	if len(videos) == 0 {
		fmt.Fprintln(m.out, "No downloaded videos yet.")
		return nil
	}

	m.rule()
	fmt.Fprintln(m.out, "Downloaded videos:")
	m.rule()
	for i := range videos {
		v := &videos[i]
		title := caption.ExtractTitle(v.DescriptionText())
		if title == "" {
			title = v.FileName
		}
		fmt.Fprintf(m.out, "%d. Date: %s - %s\n", i+1, v.MessageDate.Format(DateLayout), shorten(title, 60))
	}
	m.rule()

	idx, err := m.askIndex(ctx, len(videos), "video")
	if err != nil || idx < 0 {
		return err
	}
	video := &videos[idx]

	prompt := "Thumbnail image path (Enter to skip): "
	if stored := video.Thumbnail(); stored != "" {
		prompt = fmt.Sprintf("Thumbnail image path [%s]: ", stored)
	}
	thumb, err := m.ask(ctx, prompt)
	if err != nil {
		return err
	}
	if thumb == "" {
		thumb = video.Thumbnail()
	}

	err = m.ops.Run(ctx, "publish", func(ctx context.Context) error {
		id, err := m.publisher.Repost(ctx, video.FilePath, video.DescriptionText(), thumb)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "Published as message %d.\n", id)
		return nil
	})
	if err != nil {
		m.reportError("publish failed", err)
	}
	return nil
}

// reportError prints a user-facing error with hints for known causes.
func (m *Menu) reportError(what string, err error) {
	m.log.Error().Err(err).Msg("cli: " + what)

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(m.out, "\nOperation cancelled.")
		return
	}
	fmt.Fprintf(m.out, "\nError: %s: %v\n", what, err)

	if errors.Is(err, telegram.ErrChatNotFound) || errors.Is(err, telegram.ErrInvalidChatRef) {
		fmt.Fprintln(m.out, "Possible fixes:")
		fmt.Fprintln(m.out, "  1. Check that this account can access the channel")
		fmt.Fprintln(m.out, "  2. Run: tgvideo channels")
		fmt.Fprintf(m.out, "  3. Check TG_SOURCE_CHANNEL (currently %q)\n", m.source)
	}
	if errors.Is(err, telegram.ErrNotAuthorized) {
		fmt.Fprintln(m.out, "The session is not authorized, run tg-auth to log in again.")
	}
}

func (m *Menu) rule() {
	fmt.Fprintln(m.out, strings.Repeat("=", 60))
}

func isInputEnd(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// exitErr turns the ways input can end into a clean exit.
func exitErr(err error) error {
	if isInputEnd(err) {
		return nil
	}
	return err
}
