package box

var (
	TypeFTYP = f("ftyp")
	TypeMOOV = f("moov")
	TypeMVHD = f("mvhd")
	TypeIODS = f("iods")
	TypeTRAK = f("trak")
	TypeTKHD = f("tkhd")
	TypeTREF = f("tref")
	TypeEDTS = f("edts")
	TypeELST = f("elst")
	TypeMDIA = f("mdia")
	TypeMDHD = f("mdhd")
	TypeHDLR = f("hdlr")
	TypeMINF = f("minf")
	TypeVMHD = f("vmhd")
	TypeSMHD = f("smhd")
	TypeHMHD = f("hmhd")
	TypeNMHD = f("nmhd")
	TypeDINF = f("dinf")
	TypeDREF = f("dref")
	TypeURL  = f("url ")
	TypeURN  = f("urn ")
	TypeSTBL = f("stbl")
	TypeSTSD = f("stsd")
	TypeSTTS = f("stts")
	TypeCTTS = f("ctts")
	TypeSTSC = f("stsc")
	TypeSTSZ = f("stsz")
	TypeSTZ2 = f("stz2")
	TypeSTCO = f("stco")
	TypeCO64 = f("co64")
	TypeSTSS = f("stss")
	TypeSDTP = f("sdtp")
	TypeUDTA = f("udta")
	TypeNAME = f("name")
	TypeMDAT = f("mdat")
	TypeFREE = f("free")
	TypeSKIP = f("skip")
	TypeWIDE = f("wide")
	TypeUUID = f("uuid")

	TypeMP4A = f("mp4a")
	TypeTWOS = f("twos")
	TypeSOWT = f("sowt")
	TypeSAMR = f("samr")
	TypeSAWB = f("sawb")
	TypeDAMR = f("damr")
	TypeESDS = f("esds")
	TypeAVC1 = f("avc1")
	TypeAVCC = f("avcC")
	TypeVP09 = f("vp09")
	TypeVPCC = f("vpcC")
	TypeBTRT = f("btrt")
	TypeCOLR = f("colr")
	TypePASP = f("pasp")

	TypeISOM = f("isom")
	TypeISO2 = f("iso2")
	TypeMP41 = f("mp41")
	TypeMP42 = f("mp42")

	TypeVIDE = f("vide")
	TypeSOUN = f("soun")
	TypeHINT = f("hint")
	TypeODSM = f("odsm")
	TypeSDSM = f("sdsm")
)

// Child is an expected-child constraint of a container.
type Child struct {
	Type     [4]byte
	Required bool
	OnlyOne  bool
}

// Def describes one box type: its field layout, expected children and hooks.
type Def struct {
	Type [4]byte
	// Within restricts the definition to one parent type; such definitions win over unrestricted ones.
	Within    [4]byte
	Container bool
	// Lazy boxes keep their payload in the stream when a file is parsed.
	Lazy     bool
	Children []Child
	Fields   func(b *Box) []Field
	Generate func(b *Box)
	// Mutate runs before every field is read and before writing, so layouts can follow values already decoded.
	Mutate func(b *Box)
	// Finish runs after a read and derives implicit values.
	Finish func(b *Box)
	// Prepare runs before a write and brings count fields in line with the content.
	Prepare func(b *Box)
}

type defKey struct {
	within, t [4]byte
}

var defs = map[defKey]*Def{}

func Register(list ...*Def) {
	for _, d := range list {
		defs[defKey{d.Within, d.Type}] = d
	}
}

func Lookup(parent, t [4]byte) *Def {
	if d, ok := defs[defKey{parent, t}]; ok {
		return d
	}
	if d, ok := defs[defKey{t: t}]; ok {
		return d
	}
	return opaqueDef
}

var (
	rootDef = &Def{
		Container: true,
		Children: []Child{
			{Type: TypeFTYP, OnlyOne: true},
			{Type: TypeMOOV, Required: true, OnlyOne: true},
		},
	}
	opaqueDef = &Def{
		Fields: func(*Box) []Field {
			return []Field{NewRestBytes("data")}
		},
	}
)

func fullBox() (*Integer, *Integer) {
	return NewInteger("version", 1), NewInteger("flags", 3)
}

// version reads the version field of a full box, 0 when the box has none.
func (b *Box) version() uint64 {
	if v := b.Integer("version"); v != nil {
		return v.Value(0)
	}
	return 0
}
