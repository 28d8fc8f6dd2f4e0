package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnixLongListing(t *testing.T) {
	now := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)
	raw := []byte("total 8\n" +
		"drwxr-xr-x  2 alice staff     4096 Jan  2 15:04 subdir\n" +
		"-rw-r--r--  1 alice staff      512 Jun  2  2022 readme.txt\n" +
		"lrwxrwxrwx  1 alice staff        7 Jun  2  2022 link -> target\n")

	l := Parse("/home/alice", raw, EncodingUnknown, HintUnix, now, 0)
	require.Len(t, l.Entries, 3)

	assert.Equal(t, "subdir", l.Entries[0].Name)
	assert.Equal(t, KindDir, l.Entries[0].Kind)

	assert.Equal(t, "readme.txt", l.Entries[1].Name)
	assert.Equal(t, int64(512), l.Entries[1].Size)
	assert.Equal(t, KindFile, l.Entries[1].Kind)

	assert.Equal(t, "link", l.Entries[2].Name)
	assert.Equal(t, "target", l.Entries[2].LinkTarget)
	assert.Equal(t, KindLink, l.Entries[2].Kind)
}

func TestParseUnixLongListingYearlessDate(t *testing.T) {
	now := time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC)
	raw := []byte("-rw-r--r--  1 bob users 100 Dec 25 09:00 old.txt\n")
	l := Parse("/", raw, EncodingUnknown, HintUnix, now, 0)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, 2022, l.Entries[0].ModTime.Year())
}

func TestParseMLSD(t *testing.T) {
	raw := []byte("type=file;size=42;modify=20230602072304; readme.txt\n" +
		"type=dir;modify=20230101000000; subdir\n")
	l := Parse("/", raw, EncodingUnknown, HintAuto, time.Now(), 2*time.Hour)
	require.Len(t, l.Entries, 2)
	assert.Equal(t, int64(42), l.Entries[0].Size)
	assert.Equal(t, KindFile, l.Entries[0].Kind)
	// MLSD timestamps are UTC and must not shift with the server timezone.
	assert.Equal(t, 2023, l.Entries[0].ModTime.Year())
	assert.Equal(t, 7, l.Entries[0].ModTime.Hour())
	assert.Equal(t, KindDir, l.Entries[1].Kind)
}

func TestParseDOSListing(t *testing.T) {
	raw := []byte("01-02-23  03:04PM       <DIR>          subdir\n" +
		"01-02-23  03:04PM             1234     file.txt\n")
	l := Parse("/", raw, EncodingUnknown, HintDOS, time.Now(), 0)
	require.Len(t, l.Entries, 2)
	assert.Equal(t, KindDir, l.Entries[0].Kind)
	assert.Equal(t, KindFile, l.Entries[1].Kind)
	assert.Equal(t, int64(1234), l.Entries[1].Size)
	assert.Equal(t, 15, l.Entries[1].ModTime.Hour())
}

func TestParseVMSListing(t *testing.T) {
	raw := []byte("README.TXT;3     5/9     2-JUN-2023 07:23:04.00  [OWNER,GROUP]  (RWED,RWED,RE,)\n" +
		"SUBDIR.DIR;1      1/9     1-JAN-2023 00:00:00.00  [OWNER,GROUP]  (RWED,RWED,RE,)\n")
	l := Parse("/", raw, EncodingUnknown, HintVMS, time.Now(), 0)
	require.Len(t, l.Entries, 2)
	assert.Equal(t, "README.TXT", l.Entries[0].Name)
	assert.Equal(t, KindFile, l.Entries[0].Kind)
	assert.Equal(t, "SUBDIR.DIR", l.Entries[1].Name)
	assert.Equal(t, KindDir, l.Entries[1].Kind)
}

func TestParseEPLF(t *testing.T) {
	raw := []byte("+i8388621.29609,m824255902,/,\tdev\n" +
		"+i8388621.44468,m841947445,r,s10376,\tRFCEPLF\n")
	l := Parse("/", raw, EncodingUnknown, HintAuto, time.Now(), 0)
	require.Len(t, l.Entries, 2)
	assert.Equal(t, KindDir, l.Entries[0].Kind)
	assert.Equal(t, "RFCEPLF", l.Entries[1].Name)
	assert.Equal(t, int64(10376), l.Entries[1].Size)
}

func TestRawFallback(t *testing.T) {
	raw := []byte("some garbage line that matches no known dialect\n")
	l := Parse("/", raw, EncodingUnknown, HintAuto, time.Now(), 0)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, "some garbage line that matches no known dialect", l.Entries[0].Name)
	assert.True(t, l.Entries[0].Unsure&UnsureModTime != 0)
}

func TestMonthByNameMultilingual(t *testing.T) {
	assert.Equal(t, 1, MonthByName("Jan"))
	assert.Equal(t, 1, MonthByName("januar"))
	assert.Equal(t, 6, MonthByName("juin"))
	assert.Equal(t, 12, MonthByName("dec."))
	assert.Equal(t, 0, MonthByName("notamonth"))
}

func TestLooksLikeEBCDIC(t *testing.T) {
	ebcdicDigits := []byte{0x1F, 0xF1, 0xF2, 0xF3, 0x40, 0xC1, 0xC2}
	assert.True(t, looksLikeEBCDIC(ebcdicDigits))

	ascii := []byte("drwxr-xr-x 2 a a 4096 Jan 2 2023 x\n")
	assert.False(t, looksLikeEBCDIC(ascii))
}

func TestStripVMSVersion(t *testing.T) {
	assert.Equal(t, "FOO.TXT", stripVMSVersion("FOO.TXT;5"))
	assert.Equal(t, "FOO.TXT", stripVMSVersion("FOO.TXT"))
}
