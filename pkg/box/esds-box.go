package box

func setImplicit(d *Descriptor, implicit bool, names ...string) {
	for _, name := range names {
		d.Field(name).SetImplicit(implicit)
	}
}

func init() {
	RegisterDescriptor(
		// class ES_Descriptor extends BaseDescriptor : bit(8) tag=ES_DescrTag {
		// 	bit(16) ES_ID;
		// 	bit(1) streamDependenceFlag;
		// 	bit(1) URL_Flag;
		// 	bit(1) OCRstreamFlag;
		// 	bit(5) streamPriority;
		// 	if (streamDependenceFlag)
		// 		bit(16) dependsOn_ES_ID;
		// 	if (URL_Flag) {
		// 		bit(8) URLlength;
		// 		bit(8) URLstring[URLlength];
		// 	}
		// 	if (OCRstreamFlag)
		// 		bit(16) OCR_ES_Id;
		// 	DecoderConfigDescriptor decConfigDescr;
		// 	SLConfigDescriptor slConfigDescr;
		// }
		&DescriptorDef{
			Tag:  ESDescrTag,
			Name: "ES_Descriptor",
			Fields: func(*Descriptor) []Field {
				urlLength := NewInteger("URLLength", 1)
				return []Field{
					NewInteger("ESID", 2),
					NewBits("streamDependenceFlag", 1),
					NewBits("URLFlag", 1),
					NewBits("OCRstreamFlag", 1),
					NewBits("streamPriority", 5),
					NewInteger("dependsOnESID", 2),
					urlLength,
					NewCountedBytes("URL", urlLength),
					NewInteger("OCRESID", 2),
					NewDescriptorList("decConfigDescr", DecoderConfigDescrTag, DecoderConfigDescrTag, true, true),
					NewDescriptorList("slConfigDescr", SLConfigDescrTag, SLConfigDescrTag, true, true),
				}
			},
			Mutate: func(d *Descriptor) {
				setImplicit(d, d.Integer("streamDependenceFlag").Value(0) == 0, "dependsOnESID")
				setImplicit(d, d.Integer("URLFlag").Value(0) == 0, "URLLength", "URL")
				setImplicit(d, d.Integer("OCRstreamFlag").Value(0) == 0, "OCRESID")
			},
		},
		// class DecoderConfigDescriptor extends BaseDescriptor : bit(8) tag=DecoderConfigDescrTag {
		// 	bit(8) objectTypeIndication;
		// 	bit(6) streamType;
		// 	bit(1) upStream;
		// 	const bit(1) reserved=1;
		// 	bit(24) bufferSizeDB;
		// 	bit(32) maxBitrate;
		// 	bit(32) avgBitrate;
		// 	DecoderSpecificInfo decSpecificInfo[0 .. 1];
		// }
		&DescriptorDef{
			Tag:  DecoderConfigDescrTag,
			Name: "DecoderConfigDescriptor",
			Fields: func(*Descriptor) []Field {
				return []Field{
					NewInteger("objectTypeId", 1),
					NewBits("streamType", 6),
					NewBits("upStream", 1),
					NewBits("reserved", 1),
					NewInteger("bufferSizeDB", 3),
					NewInteger("maxBitrate", 4),
					NewInteger("avgBitrate", 4),
					NewDescriptorList("decSpecificInfo", DecSpecificInfoTag, DecSpecificInfoTag, false, true),
				}
			},
			Generate: func(d *Descriptor) {
				d.Integer("reserved").SetValue(1, 0)
			},
		},
		&DescriptorDef{
			Tag:  DecSpecificInfoTag,
			Name: "DecoderSpecificInfo",
			Fields: func(*Descriptor) []Field {
				return []Field{NewRestBytes("info")}
			},
		},
		// predefined 0 carries a custom configuration, kept as trailing bytes
		&DescriptorDef{
			Tag:  SLConfigDescrTag,
			Name: "SLConfigDescriptor",
			Fields: func(*Descriptor) []Field {
				return []Field{NewInteger("predefined", 1)}
			},
			Generate: func(d *Descriptor) {
				d.Integer("predefined").SetValue(2, 0)
			},
		},
		iodDescriptor(IODescrTag, "InitialObjectDescriptor"),
		iodDescriptor(FileIODescrTag, "MP4_IOD"),
		&DescriptorDef{
			Tag:  ESIDIncDescrTag,
			Name: "ES_ID_Inc",
			Fields: func(*Descriptor) []Field {
				return []Field{NewInteger("trackId", 4)}
			},
		},
		&DescriptorDef{
			Tag:  ESIDRefDescrTag,
			Name: "ES_ID_Ref",
			Fields: func(*Descriptor) []Field {
				return []Field{NewInteger("refIndex", 2)}
			},
		},
	)
}

// class InitialObjectDescriptor extends ObjectDescriptorBase : bit(8) tag=InitialObjectDescrTag {
// 	bit(10) ObjectDescriptorID;
// 	bit(1) URL_Flag;
// 	bit(1) includeInlineProfileLevelFlag;
// 	const bit(4) reserved=0b1111;
// 	if (URL_Flag) {
// 		bit(8) URLlength;
// 		bit(8) URLstring[URLlength];
// 	} else {
// 		bit(8) ODProfileLevelIndication;
// 		bit(8) sceneProfileLevelIndication;
// 		bit(8) audioProfileLevelIndication;
// 		bit(8) visualProfileLevelIndication;
// 		bit(8) graphicsProfileLevelIndication;
// 		ES_Descriptor esDescr[1 .. 255];
// 		...
// 	}
// }
func iodDescriptor(tag uint8, name string) *DescriptorDef {
	return &DescriptorDef{
		Tag:  tag,
		Name: name,
		Fields: func(*Descriptor) []Field {
			urlLength := NewInteger("URLLength", 1)
			return []Field{
				NewBits("objectDescriptorId", 10),
				NewBits("URLFlag", 1),
				NewBits("includeInlineProfileLevelFlag", 1),
				NewBits("reserved", 4),
				urlLength,
				NewCountedBytes("URL", urlLength),
				NewInteger("ODProfileLevelId", 1),
				NewInteger("sceneProfileLevelId", 1),
				NewInteger("audioProfileLevelId", 1),
				NewInteger("visualProfileLevelId", 1),
				NewInteger("graphicsProfileLevelId", 1),
				NewDescriptorList("esIds", ESIDIncDescrTag, ESIDRefDescrTag, false, false),
			}
		},
		Mutate: func(d *Descriptor) {
			url := d.Integer("URLFlag").Value(0) != 0
			setImplicit(d, !url, "URLLength", "URL")
			setImplicit(d, url, "ODProfileLevelId", "sceneProfileLevelId", "audioProfileLevelId", "visualProfileLevelId", "graphicsProfileLevelId", "esIds")
		},
		Generate: func(d *Descriptor) {
			d.Integer("objectDescriptorId").SetValue(1, 0)
			d.Integer("reserved").SetValue(0xF, 0)
			for _, name := range []string{"ODProfileLevelId", "sceneProfileLevelId", "audioProfileLevelId", "visualProfileLevelId", "graphicsProfileLevelId"} {
				d.Integer(name).SetValue(0xFF, 0)
			}
		},
	}
}
