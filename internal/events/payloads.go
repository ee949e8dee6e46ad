package events

import (
	"encoding/json"
	"fmt"
)

// Payload is implemented by every event body. Kind ties the body to its
// registered name.
type Payload interface {
	Kind() Kind
}

// EpisodePending is reported when an accepted episode waits for a free slot.
type EpisodePending struct {
	EpID  int64  `json:"epId"`
	Title string `json:"title"`
}

// EpisodeStart is reported once the image count is known and fetching begins.
type EpisodeStart struct {
	EpID  int64  `json:"epId"`
	Title string `json:"title"`
	Total int    `json:"total"`
}

// EpisodeEnd is the single terminal event for an episode. ErrMsg is nil on
// full success.
type EpisodeEnd struct {
	EpID   int64   `json:"epId"`
	ErrMsg *string `json:"errMsg"`
}

// ImageSuccess reports one stored image; Current is its 1-based position.
type ImageSuccess struct {
	EpID    int64  `json:"epId"`
	URL     string `json:"url"`
	Current int    `json:"current"`
}

// ImageError reports one image that could not be stored.
type ImageError struct {
	EpID   int64  `json:"epId"`
	URL    string `json:"url"`
	ErrMsg string `json:"errMsg"`
}

// OverallProgress aggregates image completion across every active episode.
type OverallProgress struct {
	DownloadedImageCount int     `json:"downloadedImageCount"`
	TotalImageCount      int     `json:"totalImageCount"`
	Percentage           float64 `json:"percentage"`
}

// DownloadSpeed carries a formatted throughput sample such as "1.25 MB/s".
type DownloadSpeed struct {
	Speed string `json:"speed"`
}

// WatermarkStart opens a watermark pass over a directory.
type WatermarkStart struct {
	DirPath string `json:"dirPath"`
	Total   int    `json:"total"`
}

// WatermarkSuccess reports one cleaned image.
type WatermarkSuccess struct {
	DirPath string `json:"dirPath"`
	ImgPath string `json:"imgPath"`
	Current int    `json:"current"`
}

// WatermarkError reports one image the transform rejected.
type WatermarkError struct {
	DirPath string `json:"dirPath"`
	ImgPath string `json:"imgPath"`
	ErrMsg  string `json:"errMsg"`
}

// WatermarkEnd closes a watermark pass.
type WatermarkEnd struct {
	DirPath string `json:"dirPath"`
}

func (EpisodePending) Kind() Kind { return KindEpisodePending }
func (EpisodeStart) Kind() Kind { return KindEpisodeStart }
func (EpisodeEnd) Kind() Kind { return KindEpisodeEnd }
func (ImageSuccess) Kind() Kind { return KindImageSuccess }
func (ImageError) Kind() Kind { return KindImageError }
func (OverallProgress) Kind() Kind { return KindOverallProgress }
func (DownloadSpeed) Kind() Kind { return KindDownloadSpeed }
func (WatermarkStart) Kind() Kind { return KindWatermarkStart }
func (WatermarkSuccess) Kind() Kind { return KindWatermarkSuccess }
func (WatermarkError) Kind() Kind { return KindWatermarkError }
func (WatermarkEnd) Kind() Kind { return KindWatermarkEnd }

// EndOK builds a successful EpisodeEnd.
func EndOK(epID int64) EpisodeEnd {
	return EpisodeEnd{EpID: epID}
}

// EndFailed builds an EpisodeEnd carrying msg.
func EndFailed(epID int64, msg string) EpisodeEnd {
	return EpisodeEnd{EpID: epID, ErrMsg: &msg}
}

// Failed reports whether the episode ended with an error.
func (e EpisodeEnd) Failed() bool {
	return e.ErrMsg != nil
}

// Message returns the error message or "".
func (e EpisodeEnd) Message() string {
	if e.ErrMsg == nil {
		return ""
	}
	return *e.ErrMsg
}

func decodeAs[P Payload](data []byte) (Payload, error) {
	var p P
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

var decoders = [kindCount]func([]byte) (Payload, error){
	KindEpisodePending:   decodeAs[EpisodePending],
	KindEpisodeStart:     decodeAs[EpisodeStart],
	KindEpisodeEnd:       decodeAs[EpisodeEnd],
	KindImageSuccess:     decodeAs[ImageSuccess],
	KindImageError:       decodeAs[ImageError],
	KindOverallProgress:  decodeAs[OverallProgress],
	KindDownloadSpeed:    decodeAs[DownloadSpeed],
	KindWatermarkStart:   decodeAs[WatermarkStart],
	KindWatermarkSuccess: decodeAs[WatermarkSuccess],
	KindWatermarkError:   decodeAs[WatermarkError],
	KindWatermarkEnd:     decodeAs[WatermarkEnd],
}

// Decode rebuilds a typed payload from its wire name and JSON body.
func Decode(name string, data []byte) (Payload, error) {
	kind, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown event %q", name)
	}
	payload, err := decoders[kind](data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return payload, nil
}
