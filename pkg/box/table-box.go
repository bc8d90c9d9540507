package box

import "math"

// countedTable lays out a full box holding entryCount rows of the given columns.
func countedTable(columns func() []Field) func(*Box) []Field {
	return func(*Box) []Field {
		version, flags := fullBox()
		count := NewInteger("entryCount", 4)
		return []Field{version, flags, count, NewTable("entries", count, columns()...)}
	}
}

func init() {
	Register(
		&Def{
			Type:      TypeSTBL,
			Container: true,
			Children: []Child{
				{Type: TypeSTSD, Required: true, OnlyOne: true},
				{Type: TypeSTTS, Required: true, OnlyOne: true},
				{Type: TypeCTTS, OnlyOne: true},
				{Type: TypeSTSZ, OnlyOne: true},
				{Type: TypeSTZ2, OnlyOne: true},
				{Type: TypeSTSC, Required: true, OnlyOne: true},
				{Type: TypeSTCO, OnlyOne: true},
				{Type: TypeCO64, OnlyOne: true},
				{Type: TypeSTSS, OnlyOne: true},
				{Type: TypeSDTP, OnlyOne: true},
			},
		},
		&Def{
			Type:      TypeSTSD,
			Container: true,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewInteger("entryCount", 4)}
			},
			Prepare: func(b *Box) {
				b.Integer("entryCount").SetValue(uint64(len(b.children)), 0)
			},
		},
		// aligned(8) class TimeToSampleBox extends FullBox('stts', version = 0, 0) {
		// 	unsigned int(32) entry_count;
		// 	for (i=0; i < entry_count; i++) {
		// 		unsigned int(32) sample_count;
		// 		unsigned int(32) sample_delta;
		// 	}
		// }
		&Def{
			Type: TypeSTTS,
			Fields: countedTable(func() []Field {
				return []Field{NewInteger("sampleCount", 4), NewInteger("sampleDelta", 4)}
			}),
		},
		// aligned(8) class CompositionOffsetBox extends FullBox('ctts', version, 0) {
		// 	unsigned int(32) entry_count;
		// 	for (i=0; i < entry_count; i++) {
		// 		unsigned int(32) sample_count;
		// 		signed int(32) sample_offset;
		// 	}
		// }
		&Def{
			Type: TypeCTTS,
			Fields: countedTable(func() []Field {
				return []Field{NewInteger("sampleCount", 4), NewInteger("sampleOffset", 4).Signed()}
			}),
		},
		// aligned(8) class SampleToChunkBox extends FullBox('stsc', version = 0, 0) {
		// 	unsigned int(32) entry_count;
		// 	for (i=1; i <= entry_count; i++) {
		// 		unsigned int(32) first_chunk;
		// 		unsigned int(32) samples_per_chunk;
		// 		unsigned int(32) sample_description_index;
		// 	}
		// }
		&Def{
			Type: TypeSTSC,
			Fields: countedTable(func() []Field {
				first := NewInteger("firstSample", 8)
				first.SetImplicit(true)
				return []Field{NewInteger("firstChunk", 4), NewInteger("samplesPerChunk", 4), NewInteger("sampleDescriptionIndex", 4), first}
			}),
			Finish: deriveFirstSample,
		},
		// aligned(8) class SampleSizeBox extends FullBox('stsz', version = 0, 0) {
		// 	unsigned int(32) sample_size;
		// 	unsigned int(32) sample_count;
		// 	if (sample_size==0) {
		// 		for (i=1; i <= sample_count; i++) {
		// 			unsigned int(32) entry_size;
		// 		}
		// 	}
		// }
		&Def{
			Type: TypeSTSZ,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				count := NewInteger("sampleCount", 4)
				return []Field{version, flags, NewInteger("sampleSize", 4), count, NewTable("entries", count, NewInteger("entrySize", 4))}
			},
			Mutate: func(b *Box) {
				b.Field("entries").SetImplicit(b.Integer("sampleSize").Value(0) != 0)
			},
		},
		// aligned(8) class CompactSampleSizeBox extends FullBox('stz2', version = 0, 0) {
		// 	unsigned int(24) reserved = 0;
		// 	unsigned int(8) field_size;
		// 	unsigned int(32) sample_count;
		// 	for (i=1; i <= sample_count; i++) {
		// 		unsigned int(field_size) entry_size;
		// 	}
		// }
		&Def{
			Type: TypeSTZ2,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				count := NewInteger("sampleCount", 4)
				return []Field{version, flags, NewReserved("reserved", 3), NewInteger("fieldSize", 1), count, NewTable("entries", count, NewInteger("entrySize", 1))}
			},
			Mutate: func(b *Box) {
				c := b.Column("entries", "entrySize")
				switch b.Integer("fieldSize").Value(0) {
				case 4:
					c.SetBits(4)
				case 8:
					c.SetWidth(1)
				case 16:
					c.SetWidth(2)
				default:
					// unsupported sizes make the table unreadable
					c.SetBits(0)
				}
			},
			Generate: func(b *Box) {
				b.Integer("fieldSize").SetValue(8, 0)
			},
		},
		&Def{
			Type: TypeSTCO,
			Fields: countedTable(func() []Field {
				return []Field{NewInteger("chunkOffset", 4)}
			}),
		},
		&Def{
			Type: TypeCO64,
			Fields: countedTable(func() []Field {
				return []Field{NewInteger("chunkOffset", 8)}
			}),
		},
		&Def{
			Type: TypeSTSS,
			Fields: countedTable(func() []Field {
				return []Field{NewInteger("sampleNumber", 4)}
			}),
		},
		// aligned(8) class SampleDependencyTypeBox extends FullBox('sdtp', version = 0, 0) {
		// 	for (i=0; i < sample_count; i++){
		// 		unsigned int(2) is_leading;
		// 		unsigned int(2) sample_depends_on;
		// 		unsigned int(2) sample_is_depended_on;
		// 		unsigned int(2) sample_has_redundancy;
		// 	}
		// }
		&Def{
			Type: TypeSDTP,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewRestBytes("data")}
			},
		},
	)
}

// deriveFirstSample fills the implicit firstSample column of stsc, saturating on overflow.
func deriveFirstSample(b *Box) {
	firstChunk := b.Column("entries", "firstChunk")
	perChunk := b.Column("entries", "samplesPerChunk")
	first := b.Column("entries", "firstSample")
	sample := uint64(1)
	for i := 0; i < first.Count(); i++ {
		first.values[i] = sample
		if i+1 < first.Count() {
			chunks := firstChunk.Value(i+1) - firstChunk.Value(i)
			if firstChunk.Value(i+1) < firstChunk.Value(i) {
				chunks = 0
			}
			n := chunks * perChunk.Value(i)
			if perChunk.Value(i) != 0 && n/perChunk.Value(i) != chunks || sample > math.MaxUint64-n {
				sample = math.MaxUint64
			} else {
				sample += n
			}
		}
	}
}
