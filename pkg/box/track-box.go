package box

func init() {
	Register(
		&Def{
			Type:      TypeTRAK,
			Container: true,
			Children: []Child{
				{Type: TypeTKHD, Required: true, OnlyOne: true},
				{Type: TypeTREF, OnlyOne: true},
				{Type: TypeEDTS, OnlyOne: true},
				{Type: TypeMDIA, Required: true, OnlyOne: true},
				{Type: TypeUDTA, OnlyOne: true},
			},
		},
		// aligned(8) class TrackHeaderBox extends FullBox('tkhd', version, flags){
		// 	if (version==1) {
		// 		unsigned int(64) creation_time;
		// 		unsigned int(64) modification_time;
		// 		unsigned int(32) track_ID;
		// 		const unsigned int(32) reserved = 0;
		// 		unsigned int(64) duration;
		// 	} else { // version==0
		// 		unsigned int(32) creation_time;
		// 		unsigned int(32) modification_time;
		// 		unsigned int(32) track_ID;
		// 		const unsigned int(32) reserved = 0;
		// 		unsigned int(32) duration;
		// 	}
		// 	const unsigned int(32)[2] reserved = 0;
		// 	template int(16) layer = 0;
		// 	template int(16) alternate_group = 0;
		// 	template int(16) volume = {if track_is_audio 0x0100 else 0};
		// 	const unsigned int(16) reserved = 0;
		// 	template int(32)[9] matrix;
		// 	unsigned int(32) width;
		// 	unsigned int(32) height;
		// }
		&Def{
			Type: TypeTKHD,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{
					version, flags,
					NewInteger("creationTime", 4),
					NewInteger("modificationTime", 4),
					NewInteger("trackId", 4),
					NewReserved("reserved1", 4),
					NewInteger("duration", 4),
					NewReserved("reserved2", 8),
					NewInteger("layer", 2).Signed(),
					NewInteger("alternateGroup", 2),
					NewFloat("volume", Fixed16),
					NewReserved("reserved3", 2),
					NewIntegers("matrix", 4, 9),
					NewFloat("width", Fixed32),
					NewFloat("height", Fixed32),
				}
			},
			Mutate: func(b *Box) {
				setTimeWidths(b, "creationTime", "modificationTime", "duration")
			},
			Generate: func(b *Box) {
				// enabled, in movie, in preview
				b.Integer("flags").SetValue(7, 0)
				setMatrix(b)
			},
		},
		&Def{Type: TypeTREF, Container: true},
		&Def{
			Type:      TypeEDTS,
			Container: true,
			Children:  []Child{{Type: TypeELST, OnlyOne: true}},
		},
		&Def{
			Type: TypeELST,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				count := NewInteger("entryCount", 4)
				return []Field{
					version, flags, count,
					NewTable("entries", count,
						NewInteger("segmentDuration", 4),
						NewInteger("mediaTime", 4).Signed(),
						NewInteger("mediaRate", 2).Signed(),
						NewInteger("mediaRateFraction", 2),
					),
				}
			},
			Mutate: func(b *Box) {
				w := 4
				if b.version() == 1 {
					w = 8
				}
				for _, name := range []string{"segmentDuration", "mediaTime"} {
					if c := b.Column("entries", name); c.Width() != w {
						c.SetWidth(w)
					}
				}
			},
		},
		&Def{
			Type:      TypeMDIA,
			Container: true,
			Children: []Child{
				{Type: TypeMDHD, Required: true, OnlyOne: true},
				{Type: TypeHDLR, Required: true, OnlyOne: true},
				{Type: TypeMINF, Required: true, OnlyOne: true},
			},
		},
		&Def{
			Type: TypeMDHD,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{
					version, flags,
					NewInteger("creationTime", 4),
					NewInteger("modificationTime", 4),
					NewInteger("timeScale", 4),
					NewInteger("duration", 4),
					NewBits("pad", 1),
					NewBits("language", 15),
					NewInteger("quality", 2),
				}
			},
			Mutate: func(b *Box) {
				setTimeWidths(b, "creationTime", "modificationTime", "duration")
			},
			Generate: func(b *Box) {
				b.Integer("timeScale").SetValue(1000, 0)
				b.Integer("language").SetValue(languageCode("und"), 0)
			},
		},
		&Def{
			Type: TypeHDLR,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{
					version, flags,
					NewReserved("reserved1", 4),
					NewFixedString("handlerType", 4),
					NewReserved("reserved2", 12),
					NewString("name"),
				}
			},
		},
		&Def{
			Type:      TypeMINF,
			Container: true,
			Children: []Child{
				{Type: TypeVMHD, OnlyOne: true},
				{Type: TypeSMHD, OnlyOne: true},
				{Type: TypeHMHD, OnlyOne: true},
				{Type: TypeNMHD, OnlyOne: true},
				{Type: TypeDINF, Required: true, OnlyOne: true},
				{Type: TypeSTBL, Required: true, OnlyOne: true},
			},
		},
		&Def{
			Type: TypeVMHD,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewInteger("graphicsMode", 2), NewIntegers("opColor", 2, 3)}
			},
			Generate: func(b *Box) {
				b.Integer("flags").SetValue(1, 0)
			},
		},
		&Def{
			Type: TypeSMHD,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewFloat("balance", Fixed16), NewReserved("reserved", 2)}
			},
		},
		&Def{
			Type: TypeHMHD,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{
					version, flags,
					NewInteger("maxPduSize", 2),
					NewInteger("avgPduSize", 2),
					NewInteger("maxBitrate", 4),
					NewInteger("avgBitrate", 4),
					NewReserved("reserved", 4),
				}
			},
		},
		&Def{
			Type: TypeNMHD,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags}
			},
		},
		&Def{
			Type:      TypeDINF,
			Container: true,
			Children:  []Child{{Type: TypeDREF, Required: true, OnlyOne: true}},
		},
		&Def{
			Type:      TypeDREF,
			Container: true,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewInteger("entryCount", 4)}
			},
			Generate: func(b *Box) {
				b.NewChild(TypeURL).Integer("flags").SetValue(1, 0)
			},
			Prepare: func(b *Box) {
				b.Integer("entryCount").SetValue(uint64(len(b.children)), 0)
			},
		},
		&Def{
			Type:   TypeURL,
			Within: TypeDREF,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewString("location")}
			},
			// flag 1: media data is in the same file and no location follows
			Mutate: func(b *Box) {
				b.Field("location").SetImplicit(b.Integer("flags").Value(0)&1 != 0)
			},
		},
		&Def{
			Type:   TypeURN,
			Within: TypeDREF,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewString("name"), NewString("location")}
			},
		},
	)
}

// languageCode packs an ISO-639-2/T code into the 15-bit mdhd form.
func languageCode(lang string) uint64 {
	var v uint64
	for i := 0; i < 3 && i < len(lang); i++ {
		v = v<<5 | uint64(lang[i]-0x60)&0x1F
	}
	return v
}
