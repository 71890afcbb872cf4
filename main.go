package main

import (
	"github.com/lehigh-university-libraries/doiregistry/cmd"

	// Register format plugins
	_ "github.com/lehigh-university-libraries/doiregistry/format/bibtex"
	_ "github.com/lehigh-university-libraries/doiregistry/format/crossref"
	_ "github.com/lehigh-university-libraries/doiregistry/format/csl"
	_ "github.com/lehigh-university-libraries/doiregistry/format/datacite"
	_ "github.com/lehigh-university-libraries/doiregistry/format/dcjson"
	_ "github.com/lehigh-university-libraries/doiregistry/format/ris"
	_ "github.com/lehigh-university-libraries/doiregistry/format/schemaorg"
)

func main() {
	cmd.Execute()
}
