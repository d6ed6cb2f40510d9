package normalize

// abbreviations maps a lowercase abbreviation, with periods removed, to the
// readings a synthesizer may use for it.
var abbreviations = map[string][]string{
	"dr":     {"doctor", "drive"},
	"mr":     {"mister"},
	"mrs":    {"missus", "misses"},
	"ms":     {"miz", "miss"},
	"prof":   {"professor"},
	"st":     {"saint", "street"},
	"ave":    {"avenue"},
	"blvd":   {"boulevard"},
	"rd":     {"road"},
	"jr":     {"junior"},
	"sr":     {"senior"},
	"gen":    {"general"},
	"capt":   {"captain"},
	"lt":     {"lieutenant"},
	"sgt":    {"sergeant"},
	"gov":    {"governor"},
	"rev":    {"reverend"},
	"etc":    {"et cetera", "etcetera"},
	"eg":     {"for example", "e g"},
	"ie":     {"that is", "i e"},
	"vs":     {"versus"},
	"approx": {"approximately"},
	"dept":   {"department"},
	"est":    {"established", "estimated"},
	"fig":    {"figure"},
	"vol":    {"volume"},
	"no":     {"number"},
	"pp":     {"pages"},
	"ch":     {"chapter"},
	"sec":    {"second", "section"},
	"min":    {"minute", "minutes"},
	"hr":     {"hour"},
	"hrs":    {"hours"},
	"ft":     {"feet", "foot"},
	"in":     {"inches", "inch"},
	"lb":     {"pound", "pounds"},
	"lbs":    {"pounds"},
	"oz":     {"ounces", "ounce"},
	"km":     {"kilometers", "kilometres"},
	"kg":     {"kilograms"},
	"cm":     {"centimeters", "centimetres"},
	"mm":     {"millimeters", "millimetres"},
	"mph":    {"miles per hour"},
	"am":     {"a m"},
	"pm":     {"p m"},
	"inc":    {"incorporated"},
	"ltd":    {"limited"},
	"corp":   {"corporation"},
	"co":     {"company"},
	"jan":    {"january"},
	"feb":    {"february"},
	"mar":    {"march"},
	"apr":    {"april"},
	"aug":    {"august"},
	"sep":    {"september"},
	"sept":   {"september"},
	"oct":    {"october"},
	"nov":    {"november"},
	"dec":    {"december"},
	"us":     {"u s", "united states"},
	"uk":     {"u k", "united kingdom"},
	"phd":    {"p h d"},
}

// ambiguousAbbreviations are also ordinary words, so a trailing period more
// likely ends the sentence than marks an abbreviation.
var ambiguousAbbreviations = map[string]bool{
	"am": true, "co": true, "dec": true, "gen": true, "in": true, "mar": true,
	"min": true, "no": true, "rev": true, "sec": true, "us": true,
}

// contractions holds whole-word contractions that don't follow the
// base+suffix rule.
var contractions = map[string][]string{
	"can't":   {"can not", "cannot"},
	"won't":   {"will not"},
	"shan't":  {"shall not"},
	"ain't":   {"is not", "am not", "are not"},
	"let's":   {"let us"},
	"y'all":   {"you all"},
	"o'clock": {"of the clock"},
}

// contractionSuffixes maps the part after the apostrophe to its readings.
var contractionSuffixes = map[string][]string{
	"ll": {"will"},
	"re": {"are"},
	"ve": {"have"},
	"m":  {"am"},
	"d":  {"would", "had"},
	"s":  {"is", "has", "s"},
}

// symbols maps single characters to their spoken form.
var symbols = map[rune][]string{
	'√': {"square root of"},
	'∛': {"cube root of"},
	'%': {"percent"},
	'&': {"and"},
	'+': {"plus"},
	'−': {"minus"},
	'=': {"equals"},
	'≈': {"approximately equals"},
	'≠': {"not equal to"},
	'<': {"less than"},
	'>': {"greater than"},
	'≤': {"less than or equal to"},
	'≥': {"greater than or equal to"},
	'×': {"times"},
	'÷': {"divided by"},
	'±': {"plus or minus"},
	'°': {"degrees"},
	'π': {"pi"},
	'∞': {"infinity"},
	'@': {"at"},
	'#': {"number", "hash"},
	'~': {"approximately", "tilde"},
	'^': {"to the power of"},
	'²': {"squared"},
	'³': {"cubed"},
	'€': {"euros"},
	'£': {"pounds"},
	'$': {"dollars"},
	'¢': {"cents"},
}

// currencies read after the amount: "$5" is spoken "five dollars".
var currencies = map[rune]bool{
	'$': true,
	'€': true,
	'£': true,
}
