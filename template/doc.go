// Package template implements the tag-based template transpiler. A template is plain text interleaved with tags
// delimited by "<#" and "#>":
//
//	<#using# fmt#>          adds an import to the generated file
//	<#model# *site.Page#>   declares the model type Execute expects
//	<#base# site.Helpers#>  declares a type embedded in the generated struct
//	<# for i := 0; i < 3; i++ { #>
//	line
//	<# } #>
//
// Any other tag is Go code inserted verbatim into the body of the generated Execute method, where the receiver is
// named t and the asserted model is named model. Text outside of tags is written to the output through t.Write.
package template
