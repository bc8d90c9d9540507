package box

var identityMatrix = [9]uint64{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}

// setTimeWidths sizes the named fields for the box version: 64-bit in version 1, 32-bit otherwise.
func setTimeWidths(b *Box, names ...string) {
	w := 4
	if b.version() == 1 {
		w = 8
	}
	for _, name := range names {
		if fd := b.Integer(name); fd != nil && fd.Width() != w {
			fd.SetWidth(w)
		}
	}
}

// Column returns an integer column of a table field, or nil.
func (b *Box) Column(table, name string) *Integer {
	t, ok := b.fields.get(table).(*Table)
	if !ok {
		return nil
	}
	c, _ := t.Column(name).(*Integer)
	return c
}

func (b *Box) Table(name string) *Table {
	t, _ := b.fields.get(name).(*Table)
	return t
}

func setMatrix(b *Box) {
	m := b.Integer("matrix")
	for i, v := range identityMatrix {
		m.SetValue(v, i)
	}
}

func opaqueFields(*Box) []Field {
	return []Field{NewRestBytes("data")}
}

func init() {
	Register(
		// aligned(8) class FileTypeBox extends Box('ftyp') {
		// 	unsigned int(32) major_brand;
		// 	unsigned int(32) minor_version;
		// 	unsigned int(32) compatible_brands[]; // to end of the box
		// }
		&Def{
			Type: TypeFTYP,
			Fields: func(*Box) []Field {
				return []Field{
					NewFixedString("majorBrand", 4),
					NewInteger("minorVersion", 4),
					NewTable("compatibleBrands", nil, NewFixedString("brand", 4)),
				}
			},
			Generate: func(b *Box) {
				b.Field("majorBrand").(*String).SetValue("mp42", 0)
				brands := b.Table("compatibleBrands")
				for _, brand := range []string{"mp42", "isom"} {
					brands.AddRow()
					brands.Column("brand").(*String).SetValue(brand, brands.Count()-1)
				}
			},
		},
		&Def{
			Type:      TypeMOOV,
			Container: true,
			Children: []Child{
				{Type: TypeMVHD, Required: true, OnlyOne: true},
				{Type: TypeIODS, OnlyOne: true},
				{Type: TypeTRAK},
				{Type: TypeUDTA, OnlyOne: true},
			},
		},
		&Def{
			Type: TypeMVHD,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{
					version, flags,
					NewInteger("creationTime", 4),
					NewInteger("modificationTime", 4),
					NewInteger("timeScale", 4),
					NewInteger("duration", 4),
					NewFloat("rate", Fixed32),
					NewFloat("volume", Fixed16),
					NewReserved("reserved", 10),
					NewIntegers("matrix", 4, 9),
					NewReserved("preDefined", 24),
					NewInteger("nextTrackId", 4),
				}
			},
			Mutate: func(b *Box) {
				setTimeWidths(b, "creationTime", "modificationTime", "duration")
			},
			Generate: func(b *Box) {
				b.Integer("timeScale").SetValue(1000, 0)
				b.Field("rate").(*Float).SetValue(1, 0)
				b.Field("volume").(*Float).SetValue(1, 0)
				setMatrix(b)
				b.Integer("nextTrackId").SetValue(1, 0)
			},
		},
		&Def{
			Type: TypeIODS,
			Fields: func(*Box) []Field {
				version, flags := fullBox()
				return []Field{version, flags, NewDescriptorList("", FileIODescrTag, FileIODescrTag, true, true)}
			},
		},
		&Def{
			Type:      TypeUDTA,
			Container: true,
			Children:  []Child{{Type: TypeNAME, OnlyOne: true}},
		},
		&Def{
			Type:   TypeNAME,
			Within: TypeUDTA,
			Fields: func(*Box) []Field {
				return []Field{NewRestString("value")}
			},
		},
		&Def{Type: TypeMDAT, Lazy: true, Fields: opaqueFields},
		&Def{Type: TypeFREE, Fields: opaqueFields},
		&Def{Type: TypeSKIP, Fields: opaqueFields},
		&Def{Type: TypeWIDE, Fields: opaqueFields},
		&Def{Type: TypeUUID, Fields: opaqueFields},
	)
}
