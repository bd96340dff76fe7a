package audio

// Tools names the executable used for every external tool. Empty fields
// fall back to the conventional binary name.
type Tools struct {
	Flac           string `yaml:"flac" toml:"flac"`
	Mac            string `yaml:"mac" toml:"mac"`
	WvUnpack       string `yaml:"wvunpack" toml:"wvunpack"`
	MPlayer        string `yaml:"mplayer" toml:"mplayer"`
	OggEnc         string `yaml:"oggenc" toml:"oggenc"`
	Lame           string `yaml:"lame" toml:"lame"`
	CueBreakpoints string `yaml:"cuebreakpoints" toml:"cuebreakpoints"`
	ShnSplit       string `yaml:"shnsplit" toml:"shnsplit"`
	VorbisComment  string `yaml:"vorbiscomment" toml:"vorbiscomment"`
}

// DefaultTools returns the conventional executable names.
func DefaultTools() Tools {
	return Tools{
		Flac:           "flac",
		Mac:            "mac",
		WvUnpack:       "wvunpack",
		MPlayer:        "mplayer",
		OggEnc:         "oggenc",
		Lame:           "lame",
		CueBreakpoints: "cuebreakpoints",
		ShnSplit:       "shnsplit",
		VorbisComment:  "vorbiscomment",
	}
}

// WithDefaults fills every empty field from DefaultTools.
func (t Tools) WithDefaults() Tools {
	d := DefaultTools()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&t.Flac, d.Flac)
	fill(&t.Mac, d.Mac)
	fill(&t.WvUnpack, d.WvUnpack)
	fill(&t.MPlayer, d.MPlayer)
	fill(&t.OggEnc, d.OggEnc)
	fill(&t.Lame, d.Lame)
	fill(&t.CueBreakpoints, d.CueBreakpoints)
	fill(&t.ShnSplit, d.ShnSplit)
	fill(&t.VorbisComment, d.VorbisComment)
	return t
}
