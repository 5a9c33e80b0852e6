package imgcache

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// imageProvenance holds the copyright/credit fields extracted from a
// downloaded image. Landing pages must never serve watermarked agency
// images, so these fields feed the stock-agency filter in the fetcher.
type imageProvenance struct {
	EXIFCopyright string
	EXIFArtist    string
	IPTCCopyright string
	IPTCCredit    string
	IPTCSource    string
	IPTCByline    string
	XMPRights     string
	XMPCreator    string
}

// stockAgencyKeywords are substrings that identify a stock-photo agency
// when found (case-insensitive) in any provenance field.
var stockAgencyKeywords = []string{
	"shutterstock",
	"gettyimages",
	"getty images",
	"istockphoto",
	"istock",
	"alamy",
	"depositphotos",
	"dreamstime",
	"123rf",
	"adobestock",
	"adobe stock",
	"bigstockphoto",
	"stocksy",
	"freepik",
}

// provenanceTags maps (source, tag-name) → true for the tags we extract.
var provenanceTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Copyright": true,
		"Artist":    true,
	},
	imagemeta.IPTC: {
		"CopyrightNotice": true,
		"Credit":          true,
		"Source":          true,
		"Byline":          true,
	},
	imagemeta.XMP: {
		"Rights":  true,
		"Creator": true,
	},
}

// isStockTagged reports whether the raw image bytes carry embedded
// metadata naming a stock-photo agency. Parse failures and absent
// metadata degrade to false: the filter only rejects on positive
// evidence, never on missing data.
func isStockTagged(data []byte) bool {
	prov := extractProvenance(data)
	return prov != nil && prov.matchesStockAgency()
}

// matchesStockAgency scans every provenance field for stock-agency names.
func (p *imageProvenance) matchesStockAgency() bool {
	for _, field := range []string{
		p.EXIFCopyright, p.EXIFArtist,
		p.IPTCCopyright, p.IPTCCredit, p.IPTCSource, p.IPTCByline,
		p.XMPRights, p.XMPCreator,
	} {
		lower := strings.ToLower(field)
		for _, kw := range stockAgencyKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// extractProvenance parses EXIF/IPTC/XMP metadata from raw image bytes.
// Returns nil when the data is empty, unparseable, or carries none of the
// tags we care about.
func extractProvenance(data []byte) *imageProvenance {
	if len(data) == 0 {
		return nil
	}

	prov := &imageProvenance{}
	found := false

	err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := provenanceTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			s := tagValueString(ti.Value)
			if s == "" {
				return nil
			}
			switch ti.Source {
			case imagemeta.EXIF:
				switch ti.Tag {
				case "Copyright":
					prov.EXIFCopyright = s
				case "Artist":
					prov.EXIFArtist = s
				}
			case imagemeta.IPTC:
				switch ti.Tag {
				case "CopyrightNotice":
					prov.IPTCCopyright = s
				case "Credit":
					prov.IPTCCredit = s
				case "Source":
					prov.IPTCSource = s
				case "Byline":
					prov.IPTCByline = s
				}
			case imagemeta.XMP:
				switch ti.Tag {
				case "Rights":
					prov.XMPRights = s
				case "Creator":
					prov.XMPCreator = s
				}
			}
			found = true
			return nil
		},
	})

	if err != nil || !found {
		return nil
	}
	return prov
}

// tagValueString extracts a string from a tag value. XMP values may arrive
// as string or []string (from altList/seqList).
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
