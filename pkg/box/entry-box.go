package box

// visualEntry is the VisualSampleEntry layout shared by avc1 and vp09.
func visualEntry(*Box) []Field {
	return []Field{
		NewReserved("reserved1", 6),
		NewInteger("dataReferenceIndex", 2),
		NewReserved("reserved2", 16),
		NewInteger("width", 2),
		NewInteger("height", 2),
		NewReserved("reserved3", 14),
		NewCountedString("compressorName", 32),
		NewReserved("reserved4", 4),
	}
}

var (
	// horizresolution, vertresolution 72 dpi, reserved, frame_count 1
	visualReserved3 = []byte{0x00, 0x48, 0x00, 0x00, 0x00, 0x48, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	// depth 0x0018, pre_defined -1
	visualReserved4 = []byte{0x00, 0x18, 0xFF, 0xFF}
)

func generateVisualEntry(compressor string) func(b *Box) {
	return func(b *Box) {
		b.Integer("dataReferenceIndex").SetValue(1, 0)
		for name, template := range map[string][]byte{"reserved3": visualReserved3, "reserved4": visualReserved4} {
			fd := b.Field(name).(*Bytes)
			fd.SetReadOnly(false)
			fd.SetValue(template, 0)
			fd.SetReadOnly(true)
		}
		b.Field("compressorName").(*String).SetValue(compressor, 0)
	}
}

// soundEntry is the AudioSampleEntry layout with the QuickTime version 1 and 2 extensions.
func soundEntry(*Box) []Field {
	v1 := []Field{
		NewInteger("samplesPerPacket", 4),
		NewInteger("bytesPerPacket", 4),
		NewInteger("bytesPerFrame", 4),
		NewInteger("bytesPerSample", 4),
	}
	for _, fd := range v1 {
		fd.SetImplicit(true)
	}
	v2 := NewBytes("soundVersion2Data", 36)
	v2.SetImplicit(true)
	return append([]Field{
		NewReserved("reserved1", 6),
		NewInteger("dataReferenceIndex", 2),
		NewInteger("soundVersion", 2),
		NewReserved("reserved2", 6),
		NewInteger("channels", 2),
		NewInteger("sampleSize", 2),
		NewInteger("compressionId", 2),
		NewInteger("packetSize", 2),
		NewInteger("timeScale", 2),
		NewReserved("reserved3", 2),
	}, append(v1, v2)...)
}

func mutateSoundEntry(b *Box) {
	version := b.Integer("soundVersion").Value(0)
	for _, name := range []string{"samplesPerPacket", "bytesPerPacket", "bytesPerFrame", "bytesPerSample"} {
		b.Field(name).SetImplicit(version != 1)
	}
	b.Field("soundVersion2Data").SetImplicit(version != 2)
}

func generateSoundEntry(b *Box) {
	b.Integer("dataReferenceIndex").SetValue(1, 0)
	b.Integer("channels").SetValue(2, 0)
	b.Integer("sampleSize").SetValue(16, 0)
}

func soundDef(t [4]byte, children ...Child) *Def {
	return &Def{
		Type:      t,
		Within:    TypeSTSD,
		Container: true,
		Children:  children,
		Fields:    soundEntry,
		Mutate:    mutateSoundEntry,
		Generate:  generateSoundEntry,
	}
}

func init() {
	Register(
		soundDef(TypeMP4A, Child{Type: TypeESDS, Required: true, OnlyOne: true}),
		soundDef(TypeTWOS),
		soundDef(TypeSOWT),
		soundDef(TypeSAMR, Child{Type: TypeDAMR, Required: true, OnlyOne: true}),
		soundDef(TypeSAWB, Child{Type: TypeDAMR, Required: true, OnlyOne: true}),
		&Def{
			Type:      TypeAVC1,
			Within:    TypeSTSD,
			Container: true,
			Children: []Child{
				{Type: TypeAVCC, Required: true, OnlyOne: true},
				{Type: TypeBTRT, OnlyOne: true},
				{Type: TypePASP, OnlyOne: true},
				{Type: TypeCOLR, OnlyOne: true},
			},
			Fields:   visualEntry,
			Generate: generateVisualEntry("AVC Coding"),
		},
		&Def{
			Type:      TypeVP09,
			Within:    TypeSTSD,
			Container: true,
			Children: []Child{
				{Type: TypeVPCC, Required: true, OnlyOne: true},
				{Type: TypeBTRT, OnlyOne: true},
				{Type: TypeCOLR, OnlyOne: true},
				{Type: TypePASP, OnlyOne: true},
			},
			Fields:   visualEntry,
			Generate: generateVisualEntry("vp09 Coding"),
		},
		// aligned(8) class AVCDecoderConfigurationRecord {
		// 	unsigned int(8) configurationVersion = 1;
		// 	unsigned int(8) AVCProfileIndication;
		// 	unsigned int(8) profile_compatibility;
		// 	unsigned int(8) AVCLevelIndication;
		// 	bit(6) reserved = '111111'b;
		// 	unsigned int(2) lengthSizeMinusOne;
		// 	...parameter sets
		// }
		&Def{
			Type: TypeAVCC,
			Fields: func(*Box) []Field {
				return []Field{
					NewInteger("configurationVersion", 1),
					NewInteger("AVCProfileIndication", 1),
					NewInteger("profileCompatibility", 1),
					NewInteger("AVCLevelIndication", 1),
					NewBits("reserved", 6),
					NewBits("lengthSizeMinusOne", 2),
					NewRestBytes("parameterSets"),
				}
			},
			Generate: func(b *Box) {
				b.Integer("configurationVersion").SetValue(1, 0)
				b.Integer("reserved").SetValue(0x3F, 0)
				b.Integer("lengthSizeMinusOne").SetValue(3, 0)
			},
		},
		&Def{
			Type: TypeVPCC,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				size := NewInteger("codecInitializationDataSize", 2)
				return []Field{
					version, flags,
					NewInteger("profile", 1),
					NewInteger("level", 1),
					NewBits("bitDepth", 4),
					NewBits("chromaSubsampling", 3),
					NewBits("videoFullRangeFlag", 1),
					NewInteger("colourPrimaries", 1),
					NewInteger("transferCharacteristics", 1),
					NewInteger("matrixCoefficients", 1),
					size,
					NewCountedBytes("codecInitializationData", size),
				}
			},
			Generate: func(b *Box) {
				b.Integer("version").SetValue(1, 0)
				b.Integer("bitDepth").SetValue(8, 0)
				b.Integer("chromaSubsampling").SetValue(1, 0)
				b.Integer("colourPrimaries").SetValue(1, 0)
				b.Integer("transferCharacteristics").SetValue(1, 0)
				b.Integer("matrixCoefficients").SetValue(1, 0)
			},
		},
		&Def{
			Type: TypeDAMR,
			Fields: func(*Box) []Field {
				return []Field{
					NewInteger("vendor", 4),
					NewInteger("decoderVersion", 1),
					NewInteger("modeSet", 2),
					NewInteger("modeChangePeriod", 1),
					NewInteger("framesPerSample", 1),
				}
			},
		},
		&Def{
			Type: TypeBTRT,
			Fields: func(*Box) []Field {
				return []Field{NewInteger("bufferSizeDB", 4), NewInteger("maxBitrate", 4), NewInteger("avgBitrate", 4)}
			},
		},
		&Def{
			Type: TypePASP,
			Fields: func(*Box) []Field {
				return []Field{NewInteger("hSpacing", 4), NewInteger("vSpacing", 4)}
			},
			Generate: func(b *Box) {
				b.Integer("hSpacing").SetValue(1, 0)
				b.Integer("vSpacing").SetValue(1, 0)
			},
		},
		&Def{
			Type: TypeESDS,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewDescriptorList("", ESDescrTag, ESDescrTag, true, true)}
			},
		},
	)
}
