// Package metrics renders the operational state of the IRRd status
// database into the plaintext metrics exposition format consumed by
// pull-based collectors.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sjm-steffann/irrd/internal/storage"
)

// Renderer produces one complete metrics exposition document per call.
// Every call is an independent snapshot: a session is checked out from the
// store, both status queries run on it, and the session is released before
// the document is returned.
type Renderer struct {
	store   storage.Store
	version string
	startup time.Time
	now     func() time.Time
}

// Config holds the dependencies of a Renderer.
type Config struct {
	// Store provides scoped sessions to the status database.
	Store storage.Store

	// Version is the running software version, emitted as the irrd_info
	// label.
	Version string

	// Startup is the process startup timestamp. It must be set; a zero
	// value indicates a misconfigured process.
	Startup time.Time

	// Now overrides the wall clock. Defaults to time.Now.
	Now func() time.Time
}

// New creates a Renderer. A zero startup timestamp is rejected rather than
// defaulted: it means the process was started without recording its own
// startup time.
func New(cfg Config) (*Renderer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("metrics: store is required")
	}
	if cfg.Startup.IsZero() {
		return nil, fmt.Errorf("metrics: startup timestamp is not set")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Renderer{
		store:   cfg.Store,
		version: cfg.Version,
		startup: cfg.Startup,
		now:     now,
	}, nil
}

// Render returns the full exposition document: the info/uptime header
// followed by the object-count block and the six status-derived blocks, in
// fixed order. Metric stanzas are joined with single newlines and the
// document ends with exactly one trailing newline.
//
// Query failures propagate unmodified; the session is released on all
// paths.
func (r *Renderer) Render(ctx context.Context) (string, error) {
	sess, err := r.store.Conn(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = sess.Close() }()

	statistics, err := sess.ObjectStatistics(ctx)
	if err != nil {
		return "", err
	}
	status, err := sess.SourceStatus(ctx)
	if err != nil {
		return "", err
	}

	sort.Slice(statistics, func(i, j int) bool {
		return statistics[i].Source+"-"+statistics[i].ObjectClass <
			statistics[j].Source+"-"+statistics[j].ObjectClass
	})
	sort.Slice(status, func(i, j int) bool {
		return status[i].Source < status[j].Source
	})

	blocks := []string{
		r.renderHeader(),
		r.renderObjectCounts(statistics),
		r.renderUpdated(status),
		r.renderLastError(status),
		renderSerials(status, "irrd_serial_newest_mirror",
			"Newest serial number mirrored from upstream",
			func(s storage.SourceStatus) *int64 { return s.SerialNewestMirror }),
		renderSerials(status, "irrd_serial_last_export",
			"Last serial number exported",
			func(s storage.SourceStatus) *int64 { return s.SerialLastExport }),
		renderSerials(status, "irrd_serial_oldest_journal",
			"Oldest serial in the journal",
			func(s storage.SourceStatus) *int64 { return s.SerialOldestJournal }),
		renderSerials(status, "irrd_serial_newest_journal",
			"Newest serial in the journal",
			func(s storage.SourceStatus) *int64 { return s.SerialNewestJournal }),
	}

	return strings.Join(blocks, "\n") + "\n", nil
}

// renderHeader emits the version, uptime and startup-time gauges. Uptime
// is whole seconds, truncated.
func (r *Renderer) renderHeader() string {
	uptime := r.now().Unix() - r.startup.Unix()

	return strings.Join([]string{
		"# HELP irrd_info Info from IRRD, value is always 1",
		"# TYPE irrd_info gauge",
		`irrd_info{version="` + r.version + `"} 1`,
		"# HELP irrd_uptime_seconds Uptime of IRRD in seconds",
		"# TYPE irrd_uptime_seconds gauge",
		"irrd_uptime_seconds " + strconv.FormatInt(uptime, 10),
		"# HELP irrd_startup_timestamp Startup time of IRRD in seconds since UNIX epoch",
		"# TYPE irrd_startup_timestamp gauge",
		"irrd_startup_timestamp " + strconv.FormatInt(r.startup.Unix(), 10),
	}, "\n")
}

func (r *Renderer) renderObjectCounts(statistics []storage.ObjectCount) string {
	samples := make([]string, 0, len(statistics))
	for _, stat := range statistics {
		samples = append(samples, fmt.Sprintf(
			`irrd_object_class{source="%s", object_class="%s"} %d`,
			stat.Source, stat.ObjectClass, stat.Count))
	}
	return renderStanza("irrd_object_class",
		"Number of objects per class per source", samples)
}

// renderUpdated emits seconds since the last update per source. Sources
// that have never been updated are skipped.
func (r *Renderer) renderUpdated(status []storage.SourceStatus) string {
	now := r.now()
	samples := make([]string, 0, len(status))
	for _, stat := range status {
		if stat.Updated == nil {
			continue
		}
		samples = append(samples, fmt.Sprintf(
			`irrd_seconds_since_last_update{source="%s"} %s`,
			stat.Source, formatSeconds(now.Sub(*stat.Updated))))
	}
	return renderStanza("irrd_seconds_since_last_update",
		"Seconds since the last update", samples)
}

// renderLastError emits seconds since the last error per source. Unlike
// the update block, every source gets a sample: a source that has never
// errored reports +Inf, so collectors always see a series for it.
func (r *Renderer) renderLastError(status []storage.SourceStatus) string {
	now := r.now()
	samples := make([]string, 0, len(status))
	for _, stat := range status {
		value := "+Inf"
		if stat.LastError != nil {
			value = formatSeconds(now.Sub(*stat.LastError))
		}
		samples = append(samples, fmt.Sprintf(
			`irrd_seconds_since_last_error{source="%s"} %s`,
			stat.Source, value))
	}
	return renderStanza("irrd_seconds_since_last_error",
		"Seconds since the last error", samples)
}

// renderSerials emits one integer gauge per source for which the selected
// serial field is present.
func renderSerials(status []storage.SourceStatus, name, help string,
	serial func(storage.SourceStatus) *int64) string {

	samples := make([]string, 0, len(status))
	for _, stat := range status {
		v := serial(stat)
		if v == nil {
			continue
		}
		samples = append(samples, fmt.Sprintf(
			`%s{source="%s"} %d`, name, stat.Source, *v))
	}
	return renderStanza(name, help, samples)
}

// renderStanza builds one metric stanza: the HELP and TYPE comment lines
// followed by the samples, with no trailing newline. All metrics here are
// gauges.
func renderStanza(name, help string, samples []string) string {
	lines := make([]string, 0, len(samples)+2)
	lines = append(lines,
		"# HELP "+name+" "+help,
		"# TYPE "+name+" gauge")
	lines = append(lines, samples...)
	return strings.Join(lines, "\n")
}

// formatSeconds renders an elapsed duration as a float with the shortest
// representation that round-trips. Whole-second values keep a trailing .0
// so the sample stays recognizably a float.
func formatSeconds(d time.Duration) string {
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
