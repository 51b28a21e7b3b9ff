package nuspec

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleNuspec = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd">
  <metadata>
    <id>Newtonsoft.Json</id>
    <version>13.0.01</version>
    <authors>James Newton-King</authors>
    <description>Json.NET is a popular JSON framework for .NET</description>
    <projectUrl>https://www.newtonsoft.com/json</projectUrl>
    <tags>json</tags>
  </metadata>
</package>`

func TestParse(t *testing.T) {
	ns, err := Parse(strings.NewReader(sampleNuspec))
	require.NoError(t, err)
	require.Equal(t, "Newtonsoft.Json", ns.Metadata.ID)
	require.Equal(t, "13.0.01", ns.Metadata.Version)

	ls := ns.Labels()
	require.Equal(t, "Newtonsoft.Json", ls["id"])
	require.Equal(t, "json", ls["tags"])
}

func TestParseMissingID(t *testing.T) {
	_, err := Parse(strings.NewReader(`<package><metadata><version>1.0</version></metadata></package>`))
	require.Error(t, err)
}

func TestFromNupkg(t *testing.T) {
	zr := mustZip(t, map[string]string{
		"lib/net6.0/Newtonsoft.Json.dll": "not a real dll",
		"Newtonsoft.Json.nuspec":         sampleNuspec,
	})
	ns, err := FromNupkg(zr)
	require.NoError(t, err)
	require.Equal(t, "Newtonsoft.Json", ns.Metadata.ID)
}

func TestFromNupkgMissingManifest(t *testing.T) {
	zr := mustZip(t, map[string]string{
		"readme.txt":           "hello",
		"nested/other.nuspec":  sampleNuspec,
	})
	_, err := FromNupkg(zr)
	require.Error(t, err)
}

func mustZip(t testing.TB, files map[string]string) *zip.Reader {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return zr
}
