package gedcom

// tagAliases maps non-standard tags to their GEDCOM 5.5.1 form. Most entries
// are the long "formal names" written by Family Tree Maker; the rest are
// renamed custom tags from PhpGedView and older webtrees releases.
var tagAliases = map[string]string{
	"_PGVU":             "_KT_USER",
	"_WT_USER":          "_KT_USER",
	"_PGV_OBJS":         "_KT_OBJE_SORT",
	"_WT_OBJE_SORT":     "_KT_OBJE_SORT",
	"_DEGREE":           "_DEG",
	"_FILE":             "FILE",
	"_MEDICAL":          "_MDCL",
	"_MILITARY_SERVICE": "_MILT",
	"ABBREVIATION":      "ABBR",
	"ADDRESS":           "ADDR",
	"ADDRESS1":          "ADR1",
	"ADDRESS2":          "ADR2",
	"ADDRESS3":          "ADR3",
	"ADOPTION":          "ADOP",
	"ADULT_CHRISTENING": "CHRA",
	"AGENCY":            "AGNC",
	"ALIAS":             "ALIA",
	"ANCESTORS":         "ANCE",
	"ANCES_INTEREST":    "ANCI",
	"ANNULMENT":         "ANUL",
	"ASSOCIATES":        "ASSO",
	"AUTHOR":            "AUTH",
	"BAPTISM":           "BAPM",
	"BAPTISM_LDS":       "BAPL",
	"BAR_MITZVAH":       "BARM",
	"BAS_MITZVAH":       "BASM",
	"BIRTH":             "BIRT",
	"BLESSING":          "BLES",
	"BURIAL":            "BURI",
	"CALL_NUMBER":       "CALN",
	"CASTE":             "CAST",
	"CAUSE":             "CAUS",
	"CENSUS":            "CENS",
	"CHANGE":            "CHAN",
	"CHARACTER":         "CHAR",
	"CHILD":             "CHIL",
	"CHILDREN_COUNT":    "NCHI",
	"CHRISTENING":       "CHR",
	"CONCATENATION":     "CONC",
	"CONFIRMATION":      "CONF",
	"CONFIRMATION_LDS":  "CONL",
	"CONTINUED":         "CONT",
	"COPYRIGHT":         "COPR",
	"CORPORATE":         "CORP",
	"COUNTRY":           "CTRY",
	"CREMATION":         "CREM",
	"DEATH":             "DEAT",
	"DESCENDANTS":       "DESC",
	"DESCENDANT_INT":    "DESI",
	"DESTINATION":       "DEST",
	"DIVORCE":           "DIV",
	"DIVORCE_FILED":     "DIVF",
	"EDUCATION":         "EDUC",
	"EMIGRATION":        "EMIG",
	"ENDOWMENT":         "ENDL",
	"ENGAGEMENT":        "ENGA",
	"EVENT":             "EVEN",
	"FACSIMILE":         "FAX",
	"FAMILY":            "FAM",
	"FAMILY_CHILD":      "FAMC",
	"FAMILY_FILE":       "FAMF",
	"FAMILY_SPOUSE":     "FAMS",
	"FIRST_COMMUNION":   "FCOM",
	"FORMAT":            "FORM",
	"GEDCOM":            "GEDC",
	"GIVEN_NAME":        "GIVN",
	"GRADUATION":        "GRAD",
	"HEADER":            "HEAD",
	"HUSBAND":           "HUSB",
	"IDENT_NUMBER":      "IDNO",
	"IMMIGRATION":       "IMMI",
	"INDIVIDUAL":        "INDI",
	"LANGUAGE":          "LANG",
	"LATITUDE":          "LATI",
	"LONGITUDE":         "LONG",
	"MARRIAGE":          "MARR",
	"MARRIAGE_BANN":     "MARB",
	"MARRIAGE_COUNT":    "NMR",
	"MARR_CONTRACT":     "MARC",
	"MARR_LICENSE":      "MARL",
	"MARR_SETTLEMENT":   "MARS",
	"MEDIA":             "MEDI",
	"NAME_PREFIX":       "NPFX",
	"NAME_SUFFIX":       "NSFX",
	"NATIONALITY":       "NATI",
	"NATURALIZATION":    "NATU",
	"NICKNAME":          "NICK",
	"OBJECT":            "OBJE",
	"OCCUPATION":        "OCCU",
	"ORDINANCE":         "ORDI",
	"ORDINATION":        "ORDN",
	"PEDIGREE":          "PEDI",
	"PHONE":             "PHON",
	"PHONETIC":          "FONE",
	"PHY_DESCRIPTION":   "DSCR",
	"PLACE":             "PLAC",
	"POSTAL_CODE":       "POST",
	"PROBATE":           "PROB",
	"PROPERTY":          "PROP",
	"PUBLICATION":       "PUBL",
	"QUALITY_OF_DATA":   "QUAL",
	"REC_FILE_NUMBER":   "RFN",
	"REC_ID_NUMBER":     "RIN",
	"REFERENCE":         "REFN",
	"RELATIONSHIP":      "RELA",
	"RELIGION":          "RELI",
	"REPOSITORY":        "REPO",
	"RESIDENCE":         "RESI",
	"RESTRICTION":       "RESN",
	"RETIREMENT":        "RETI",
	"ROMANIZED":         "ROMN",
	"SEALING_CHILD":     "SLGC",
	"SEALING_SPOUSE":    "SLGS",
	"SOC_SEC_NUMBER":    "SSN",
	"SOURCE":            "SOUR",
	"STATE":             "STAE",
	"STATUS":            "STAT",
	"SUBMISSION":        "SUBN",
	"SUBMITTER":         "SUBM",
	"SURNAME":           "SURN",
	"SURN_PREFIX":       "SPFX",
	"TEMPLE":            "TEMP",
	"TITLE":             "TITL",
	"TRAILER":           "TRLR",
	"VERSION":           "VERS",
	"WEB":               "WWW",
}

// CanonicalTag upper-cases tag and resolves known aliases.
func CanonicalTag(tag string) string {
	tag = upperASCII(tag)
	if alias, ok := tagAliases[tag]; ok {
		return alias
	}
	return tag
}

// upperASCII upper-cases ASCII letters only, leaving other bytes alone.
func upperASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'a' && b[j] <= 'z' {
					b[j] -= 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}

// lowerASCII lower-cases ASCII letters only.
func lowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
