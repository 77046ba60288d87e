package extract

// Rules holds every selector and marker the extractor depends on. Markup
// drift on the source site should only require edits here.
type Rules struct {
	Title       string
	Description string
	KeyFeatures string

	RoomList          string
	RoomPrice         string
	RoomType          string
	WholePropertyList string

	FeatureLists string
	FeatureTerm  string
	FeatureDesc  string

	MainImage    string
	GalleryLinks string

	// ScriptMarker identifies the inline script carrying page data.
	ScriptMarker string
	// LocationKeyword starts the coordinate search inside that script.
	LocationKeyword string
	// LocationWindow bounds how many bytes after the keyword are inspected.
	LocationWindow int

	WeeklyMarker  string
	MonthlyMarker string
}

// DefaultRules returns the selectors for the listing detail page layout.
func DefaultRules() Rules {
	return Rules{
		Title:       "div#listing_heading h1",
		Description: "p.detaildesc",
		KeyFeatures: "ul.key-features > li",

		RoomList:          "ul.room-list li",
		RoomPrice:         "strong.room-list__price",
		RoomType:          "small",
		WholePropertyList: "section.feature--price-whole-property h3.feature__heading",

		FeatureLists: "dl.feature-list",
		FeatureTerm:  "dt",
		FeatureDesc:  "dd",

		MainImage:    "dl.photo-gallery__main-image-wrapper img",
		GalleryLinks: "div.photo-gallery__thumbnails a",

		ScriptMarker:    "_sr.page",
		LocationKeyword: "location",
		LocationWindow:  100,

		WeeklyMarker:  "pw",
		MonthlyMarker: "pcm",
	}
}
