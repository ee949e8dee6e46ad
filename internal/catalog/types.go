package catalog

import "encoding/json"

// SearchPageSize is the number of comics requested per search page.
const SearchPageSize = 20

// SearchResult is one page of keyword search results.
type SearchResult struct {
	Comics    []SearchComic `json:"comics"`
	TotalPage int           `json:"totalPage"`
	TotalNum  int           `json:"totalNum"`
}

// SearchComic is a comic as listed in search results.
type SearchComic struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	AuthorNames []string `json:"authorNames"`
	Styles      []string `json:"styles"`
	IsFinish    bool     `json:"isFinish"`
	Cover       string   `json:"cover"`
}

// Comic carries the details of one comic with its episodes in reading order.
type Comic struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	AuthorNames []string  `json:"authorNames"`
	Styles      []string  `json:"styles"`
	Evaluate    string    `json:"evaluate"`
	IsFinish    bool      `json:"isFinish"`
	Cover       string    `json:"cover"`
	Episodes    []Episode `json:"episodeInfos"`
}

// Episode identifies one downloadable episode. The JSON shape matches the
// download request accepted by the download_episodes command.
type Episode struct {
	EpisodeID    int64   `json:"episodeId"`
	EpisodeTitle string  `json:"episodeTitle"`
	MangaID      int64   `json:"mangaId"`
	MangaTitle   string  `json:"mangaTitle"`
	Order        float64 `json:"order"`
	IsLocked     bool    `json:"isLocked"`
	IsDownloaded bool    `json:"isDownloaded"`
}

// ImageIndex lists the image paths of an episode in page order.
type ImageIndex struct {
	Host   string  `json:"host"`
	Images []Image `json:"images"`
}

// Image is one page of an episode.
type Image struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// ImageToken authorizes the download of one image path.
type ImageToken struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	CompleteURL string `json:"complete_url"`
}

// DownloadURL returns the URL to fetch. CompleteURL wins when the catalog
// provides it; otherwise the token is appended as a query parameter.
func (t ImageToken) DownloadURL() string {
	if t.CompleteURL != "" {
		return t.CompleteURL
	}
	if t.Token == "" {
		return t.URL
	}
	return t.URL + "?token=" + t.Token
}

type envelope struct {
	Code    int64           `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type searchData struct {
	List []struct {
		ID            int64    `json:"id"`
		Title         string   `json:"title"`
		AuthorName    []string `json:"author_name"`
		Styles        []string `json:"styles"`
		IsFinish      int      `json:"is_finish"`
		VerticalCover string   `json:"vertical_cover"`
	} `json:"list"`
	TotalPage int `json:"total_page"`
	TotalNum  int `json:"total_num"`
}

type comicDetailData struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	AuthorName    []string `json:"author_name"`
	Styles        []string `json:"styles"`
	Evaluate      string   `json:"evaluate"`
	IsFinish      int      `json:"is_finish"`
	VerticalCover string   `json:"vertical_cover"`
	EpList        []struct {
		ID         int64   `json:"id"`
		Ord        float64 `json:"ord"`
		Title      string  `json:"title"`
		ShortTitle string  `json:"short_title"`
		IsLocked   bool    `json:"is_locked"`
	} `json:"ep_list"`
}
