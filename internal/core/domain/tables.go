package domain

// TLDBucket groups TLDs by how scarce good names are under them.
type TLDBucket string

const (
	BucketUltra    TLDBucket = "ultra"
	BucketRare     TLDBucket = "rare"
	BucketCommon   TLDBucket = "common"
	BucketAbundant TLDBucket = "abundant"
)

// KeywordCategory records which keyword list a name matched for valuation.
type KeywordCategory string

const (
	KeywordHigh    KeywordCategory = "high_value"
	KeywordMedium  KeywordCategory = "medium_value"
	KeywordGeneric KeywordCategory = "generic"
)

// Registrar IANA ids accepted as trusted. Anything else carries the registrar penalty.
var trustedRegistrars = map[int]struct{}{
	1:    {}, // Reserved / registry-operated
	146:  {}, // GoDaddy
	292:  {}, // MarkMonitor
	299:  {}, // CSC Corporate Domains
	468:  {}, // Amazon Registrar
	895:  {}, // Google Domains
	1068: {}, // NameCheap
	1910: {}, // CloudFlare
	3806: {}, // D3 Registrar
}

var tldBuckets = map[string]TLDBucket{
	"ai": BucketUltra,
	"io": BucketUltra,

	"co":  BucketRare,
	"app": BucketRare,
	"dev": BucketRare,
	"gg":  BucketRare,
	"me":  BucketRare,

	"com": BucketCommon,
	"net": BucketCommon,
	"org": BucketCommon,

	"xyz":    BucketAbundant,
	"info":   BucketAbundant,
	"biz":    BucketAbundant,
	"online": BucketAbundant,
	"site":   BucketAbundant,
	"top":    BucketAbundant,
	"club":   BucketAbundant,
}

var highValueKeywordList = []string{
	"ai",
	"crypto",
	"nft",
	"defi",
	"web3",
	"bank",
	"pay",
	"cash",
	"bet",
	"casino",
	"finance",
	"invest",
	"trade",
	"token",
	"coin",
	"chain",
	"meta",
	"cloud",
	"health",
	"insure",
}

var mediumValueKeywordList = []string{
	"shop",
	"store",
	"app",
	"tech",
	"data",
	"game",
	"games",
	"play",
	"home",
	"travel",
	"food",
	"music",
	"news",
	"media",
	"market",
	"labs",
	"hub",
	"digital",
	"smart",
	"dao",
}

var (
	highValueKeywords   = toSet(highValueKeywordList)
	mediumValueKeywords = toSet(mediumValueKeywordList)
)

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsTrustedRegistrar reports whether id is on the trusted registrar allow-list.
func IsTrustedRegistrar(id int) bool {
	_, ok := trustedRegistrars[id]
	return ok
}

// BucketForTLD returns the scarcity bucket of tld, BucketCommon when unknown.
func BucketForTLD(tld string) TLDBucket {
	if bucket, ok := tldBuckets[tld]; ok {
		return bucket
	}
	return BucketCommon
}

// IsDictionaryWord reports an exact match against the union of both keyword lists.
func IsDictionaryWord(name string) bool {
	if _, ok := highValueKeywords[name]; ok {
		return true
	}
	_, ok := mediumValueKeywords[name]
	return ok
}
