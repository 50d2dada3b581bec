package kana

import "testing"

func TestToHiragana(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"ア", "あ"},
		{"イ", "い"},
		{"カ", "か"},
		{"ガ", "が"},
		{"パ", "ぱ"},
		{"ン", "ん"},
		{"ー", "ー"},
		{"abc", "abc"},
		{"あいう", "あいう"},
		{"留守ヲアズカル", "留守をあずかる"},
	}
	for _, tt := range tests {
		if got := ToHiragana(tt.in); got != tt.out {
			t.Errorf("ToHiragana(%q) = %q; want %q", tt.in, got, tt.out)
		}
	}
}

func TestToKatakana(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"あ", "ア"},
		{"がっこう", "ガッコウ"},
		{"ー", "ー"},
		{"漢字", "漢字"},
	}
	for _, tt := range tests {
		if got := ToKatakana(tt.in); got != tt.out {
			t.Errorf("ToKatakana(%q) = %q; want %q", tt.in, got, tt.out)
		}
	}
}

func TestClassification(t *testing.T) {
	if !IsKanji('留') || !IsKanji('々') {
		t.Error("expected ideographs to be kanji")
	}
	if IsKanji('ル') || IsKanji('a') {
		t.Error("kana and latin must not be kanji")
	}
	if !IsKatakana('ー') {
		t.Error("prolonged sound mark belongs to katakana")
	}
	if !HasKanji("ルス留守") || HasKanji("ルスヲ") {
		t.Error("HasKanji misclassified")
	}
	if CountKanji("留守ヲ預カル") != 3 {
		t.Errorf("CountKanji = %d, want 3", CountKanji("留守ヲ預カル"))
	}
	if !AllKana("アズカル") || AllKana("") || AllKana("預カル") {
		t.Error("AllKana misclassified")
	}
}

func TestCommonAffixes(t *testing.T) {
	if got := LongestCommonSuffix("ルスヲアズカル", "留守ヲ預カル"); got != 2 {
		t.Errorf("suffix = %d, want 2", got)
	}
	if got := LongestCommonPrefix("ハナニカゼ", "ハナニ風"); got != 3 {
		t.Errorf("prefix = %d, want 3", got)
	}
	if got := LongestCommonPrefix("", "あ"); got != 0 {
		t.Errorf("prefix of empty = %d", got)
	}
}

func TestCleanReading(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"あ.げる", "あげる"},
		{"-づけ", "づけ"},
		{"【かんじ】", "かんじ"},
		{"ハナ・ニ", "ハナニ"},
	}
	for _, tt := range tests {
		if got := CleanReading(tt.in); got != tt.out {
			t.Errorf("CleanReading(%q) = %q; want %q", tt.in, got, tt.out)
		}
	}
}

func TestFullWidthDigits(t *testing.T) {
	if got := FullWidthDigits("例文12件"); got != "例文１２件" {
		t.Errorf("got %q", got)
	}
}
