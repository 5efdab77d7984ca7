package worker

import "fmt"

// Percentages of the pipeline phases. Setup runs from 0 to tilesStart, the
// tile loop from tilesStart to tilesEnd, finalization from tilesEnd to 100.
const (
	tilesStart = 5
	tilesEnd   = 95
)

// reporter emits the progress of one job. Percentages never decrease and
// only the terminal reply reaches 100. The first send error is kept and
// suppresses further sends.
type reporter struct {
	send func(Reply) error
	last int
	err  error
}

func (r *reporter) progress(message string, percentage int) error {
	if r.err != nil {
		return r.err
	}
	percentage = max(percentage, r.last)
	percentage = min(percentage, 99)
	r.last = percentage
	r.err = r.send(Reply{Progress: message, Percentage: &percentage})
	return r.err
}

func (r *reporter) tiles(done, total int) {
	_ = r.progress(fmt.Sprintf("Processed %d/%d tiles", done, total), tilePercentage(done, total))
}

func tilePercentage(done, total int) int {
	if total <= 0 {
		return tilesStart
	}
	return tilesStart + done*(tilesEnd-tilesStart)/total
}

func (r *reporter) done(dataURI string) error {
	if r.err != nil {
		return r.err
	}
	percentage := 100
	r.err = r.send(Reply{MosaicImage: dataURI, Percentage: &percentage})
	return r.err
}
