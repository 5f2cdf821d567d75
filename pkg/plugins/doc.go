// Package plugins talks to template plugins through their CLI contract and
// validates the manifest they report about themselves.
//
// # Contract
//
// Every plugin binary answers four invocations:
//
//	plugin --manifest   # one JSON document on stdout
//	plugin --example    # a representative input document
//	plugin --version    # the version string
//	plugin < input      # renders input from stdin to stdout
//
// Binary implements Contract by running the executable with a bounded
// timeout. Tests substitute an in-memory Contract.
//
// # Manifest validation
//
// ManifestValidator parses the --manifest output and checks, in order and
// stopping at the first violation:
//
//   - the output is exactly one JSON document (invalid-json)
//   - category is present (category-empty)
//   - category is at most 20 characters (category-too-long)
//   - category only holds Unicode word characters (CJK ideographs included),
//     whitespace and hyphens (category-invalid-chars)
//   - name and version are present, name is an identifier
//   - --version agrees with the manifest version
//
// # Usage Example
//
//	v := plugins.NewManifestValidator(policy.Default(), logger)
//	result := v.Check(ctx, plugins.NewBinary("./target/release/gongwen", 10*time.Second))
//	if result.Failed() {
//		fmt.Println(result.Reason, result.Evidence)
//	}
package plugins
