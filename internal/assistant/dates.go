package assistant

import (
	"regexp"
	"time"

	"busease/internal/utils"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DateParser finds a travel date in free text.
type DateParser interface {
	ParseDate(text string, now time.Time) (time.Time, bool)
}

var isoDateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// WhenDateParser understands ISO dates and English phrases such as
// "tomorrow", "on friday" or "next monday". Results are calendar days in Loc.
type WhenDateParser struct {
	Loc *time.Location
	w   *when.Parser
}

func NewWhenDateParser(loc *time.Location) *WhenDateParser {
	if loc == nil {
		loc = time.Local
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &WhenDateParser{Loc: loc, w: w}
}

func (p *WhenDateParser) ParseDate(text string, now time.Time) (time.Time, bool) {
	if raw := isoDateRe.FindString(text); raw != "" {
		if d, err := utils.ParseDate(raw, p.Loc); err == nil {
			return d, true
		}
	}
	r, err := p.w.Parse(text, now.In(p.Loc))
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return utils.StartOfDay(r.Time.In(p.Loc)), true
}
