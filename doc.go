package pdf

// This file sketches the package's typical usage. Interactive forms
// live in the form subpackage, and the digital-signature integration
// point in sign, both layered strictly on top of this package's
// exported surface.
//
// Loading an existing file:
//
//	doc, err := pdf.Load(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	page, err := doc.GetPage(0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Creating a new one:
//
//	doc := pdf.Create()
//	page := doc.AddPage(pdf.A4)
//	page.DrawOperators(ops)
//	out, err := doc.Save(pdf.SaveOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The object algebra (Bool, Number, Name, String, Array, *Dict, Ref,
// *Stream) is documented in objects.go.
