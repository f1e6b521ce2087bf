package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const rarityExplainerCount = 3

const vowels = "aeiou"

// CalculateRarityScore scores how scarce a name is: short, dictionary or brandable
// labels under scarce TLDs with buyer demand score high.
func CalculateRarityScore(attrs DomainAttributes, w RarityWeights) (float64, []ScoreFactor) {
	name := attrs.normalizedName()
	tld := attrs.normalizedTLD()
	length := utf8.RuneCountInString(name)

	lengthScore := LengthRarity(length, w.Length)

	dictScore := 0.0
	dictDesc := "No dictionary or brandable pattern"
	switch {
	case IsDictionaryWord(name):
		dictScore = w.Dictionary.DictionaryBonus
		dictDesc = fmt.Sprintf("%q is a dictionary keyword", name)
	case isBrandable(name, w.Dictionary):
		dictScore = w.Dictionary.BrandableBonus
		dictDesc = "Brandable, pronounceable pattern"
	}

	bucket := BucketForTLD(tld)
	tldScore := w.TLDScarcity.Bonuses[bucket]

	demandScore := math.Min(w.Demand.Cap, float64(attrs.OfferCount)*w.Demand.PerOffer)

	factors := []ScoreFactor{
		newFactor("Name Length", lengthScore, w.Length.Weight,
			fmt.Sprintf("%d characters", length)),
		newFactor("Dictionary/Brandability", dictScore, w.Dictionary.Weight, dictDesc),
		newFactor("TLD Scarcity", tldScore, w.TLDScarcity.Weight,
			fmt.Sprintf(".%s is %s", tld, bucket)),
		newFactor("Historic Demand", demandScore, w.Demand.Weight,
			fmt.Sprintf("%d offers received", attrs.OfferCount)),
	}

	return ClampScore(sumContributions(factors)), TopFactors(factors, rarityExplainerCount)
}

// LengthRarity is 100 for names at or below ShortLength, 0 at or above LongLength,
// linear in between.
func LengthRarity(length int, f LengthFactor) float64 {
	if length <= f.ShortLength {
		return 100
	}
	if length >= f.LongLength {
		return 0
	}
	return 100 - float64(length-f.ShortLength)/float64(f.LongLength-f.ShortLength)*100
}

// isBrandable: length inside the brandable range with at least one vowel and at least
// one non-vowel character.
func isBrandable(name string, f DictionaryFactor) bool {
	length := utf8.RuneCountInString(name)
	if length < f.BrandableMinLength || length > f.BrandableMaxLength {
		return false
	}
	hasVowel := strings.ContainsAny(name, vowels)
	hasOther := strings.IndexFunc(name, func(r rune) bool {
		return !strings.ContainsRune(vowels, r)
	}) != -1
	return hasVowel && hasOther
}
