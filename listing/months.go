package listing

import "strings"

// monthNames maps lower-cased month name/abbreviation variants, across
// the languages observed in the wild by the original implementation
// (spec.md section 4.7), to a 1-12 month number.
var monthNames = buildMonthTable()

func buildMonthTable() map[string]int {
	table := map[string]int{}
	add := func(month int, names ...string) {
		for _, n := range names {
			table[strings.ToLower(n)] = month
		}
	}
	add(1, "jan", "january", "januar", "janvier", "gennaio", "enero", "styczeń", "styczen", "tammikuu", "januari", "janeiro")
	add(2, "feb", "february", "februar", "février", "fevrier", "febbraio", "febrero", "luty", "helmikuu", "februari", "fevereiro")
	add(3, "mar", "march", "märz", "marz", "mars", "marzo", "marzec", "maaliskuu", "maart", "mart")
	add(4, "apr", "april", "avril", "aprile", "abril", "kwiecień", "kwiecien", "huhtikuu")
	add(5, "may", "mai", "mag", "maggio", "mayo", "maj", "toukokuu", "mei", "maás")
	add(6, "jun", "june", "juni", "juin", "giugno", "junio", "czerwiec", "kesäkuu")
	add(7, "jul", "july", "juli", "juillet", "luglio", "julio", "lipiec", "heinäkuu")
	add(8, "aug", "august", "août", "aout", "agosto", "sierpień", "sierpien", "elokuu")
	add(9, "sep", "sept", "september", "septembre", "settembre", "septiembre", "wrzesień", "wrzesien", "syyskuu")
	add(10, "oct", "october", "oktober", "octobre", "ottobre", "octubre", "październik", "pazdziernik", "lokakuu")
	add(11, "nov", "november", "novembre", "noviembre", "listopad", "marraskuu")
	add(12, "dec", "december", "dezember", "décembre", "decembre", "dicembre", "diciembre", "grudzień", "grudzien", "joulukuu")
	// Russian (transliterated), Hungarian, Slovenian, Lithuanian, Icelandic
	add(1, "jan", "январь", "januar", "januárja", "januar", "sausis", "janúar")
	add(2, "feb", "февраль", "februar", "februárja", "februar", "vasaris", "febrúar")
	add(3, "mar", "март", "marcius", "márciusa", "marec", "kovas", "mars")
	add(4, "apr", "апрель", "aprilis", "áprilisa", "april", "balandis", "apríl")
	add(5, "may", "май", "majus", "májusa", "maj", "gegužė", "maí")
	add(6, "jun", "июнь", "junius", "júniusa", "junij", "birželis", "júní")
	add(7, "jul", "июль", "julius", "júliusa", "julij", "liepa", "júlí")
	add(8, "aug", "август", "augusztus", "augusztusa", "avgust", "rugpjūtis", "ágúst")
	add(9, "sep", "сентябрь", "szeptember", "szeptembere", "september", "rugsėjis", "september")
	add(10, "oct", "октябрь", "oktober", "októbere", "oktober", "spalis", "október")
	add(11, "nov", "ноябрь", "november", "novembere", "november", "lapkritis", "nóvember")
	add(12, "dec", "декабрь", "december", "decembere", "december", "gruodis", "desember")
	// numeric-suffix variants seen in the wild (e.g. "1." for German ordinals)
	for i := 1; i <= 12; i++ {
		table[monthNumberToken(i)] = i
	}
	return table
}

func monthNumberToken(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return string(rune('0'+i/10)) + string(rune('0'+i%10))
}

// MonthByName resolves a month token (case-insensitive, any supported
// language/abbreviation) to 1-12, or 0 if unrecognized.
func MonthByName(token string) int {
	token = strings.TrimRight(token, ".,")
	return monthNames[strings.ToLower(token)]
}
